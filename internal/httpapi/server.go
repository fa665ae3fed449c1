package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lavanderia-bot/laundrybot/internal/config"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/protocol"
	"github.com/lavanderia-bot/laundrybot/internal/store"
)

const statusText = "🤖 Bot WhatsApp rodando com sucesso!"

// Laundry exposes read-only machine state.
type Laundry interface {
	Status(conversation string) (laundry.Status, bool)
}

// Groups lists the groups the bot has claimed.
type Groups interface {
	Groups() []store.GroupRecord
}

// Bridge serves one chat bridge connection.
type Bridge interface {
	RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- any) error
	Connected() bool
}

// History reads finished sessions.
type History interface {
	RecentUsage(ctx context.Context, conversationID string, limit int) ([]store.UsageRecord, error)
	Mode() string
}

type Server struct {
	cfg      config.Config
	laundry  Laundry
	groups   Groups
	bridge   Bridge
	history  History
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, machines Laundry, groups Groups, bridge Bridge, history History, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		laundry: machines,
		groups:  groups,
		bridge:  bridge,
		history: history,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// The bridge is a headless client and usually omits Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(statusText))
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/laundry/groups", s.handleListGroups)
	r.Get("/v1/laundry/groups/{id}", s.handleGroupStatus)
	r.Get("/v1/laundry/groups/{id}/history", s.handleGroupHistory)
	r.Get("/v1/bridge/ws", s.handleBridgeWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	connected := s.bridge != nil && s.bridge.Connected()
	status := "ready"
	if !connected {
		status = "waiting_for_bridge"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"bridge_connected": connected,
		"store_mode":       s.storeMode(),
	})
}

type groupView struct {
	store.GroupRecord
	Machine *laundry.Status `json:"machine,omitempty"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	out := []groupView{}
	if s.groups != nil {
		for _, g := range s.groups.Groups() {
			view := groupView{GroupRecord: g}
			if g.Kind == store.GroupLaundry {
				st := s.machineStatus(g.ConversationID)
				view.Machine = &st
			}
			out = append(out, view)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (s *Server) handleGroupStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_group_id", "missing group id")
		return
	}
	if !s.knownLaundryGroup(id) {
		respondError(w, http.StatusNotFound, "group_not_found", "no laundry group "+id)
		return
	}
	respondJSON(w, http.StatusOK, s.machineStatus(id))
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_group_id", "missing group id")
		return
	}
	if s.history == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "usage history not configured")
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	records, err := s.history.RecentUsage(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	if records == nil {
		records = []store.UsageRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversation": id, "usage": records})
}

// machineStatus reports an idle machine for registered groups that have not
// sent a command since startup.
func (s *Server) machineStatus(id string) laundry.Status {
	if s.laundry != nil {
		if st, ok := s.laundry.Status(id); ok {
			return st
		}
	}
	return laundry.Status{Conversation: id, Queue: []laundry.QueueEntry{}}
}

func (s *Server) knownLaundryGroup(id string) bool {
	if s.laundry != nil {
		if _, ok := s.laundry.Status(id); ok {
			return true
		}
	}
	if s.groups == nil {
		return false
	}
	for _, g := range s.groups.Groups() {
		if g.ConversationID == id && g.Kind == store.GroupLaundry {
			return true
		}
	}
	return false
}

func (s *Server) authorizedBridge(r *http.Request) bool {
	want := s.cfg.BridgeToken
	if want == "" {
		return true
	}
	got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if got == "" {
		got = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) handleBridgeWS(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "bridge not configured")
		return
	}
	if !s.authorizedBridge(r) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid bridge token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.bridge.RunConnection(ctx, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.SendErrors.WithLabelValues("ws_write").Inc()
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseBridgeMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_bridge_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
				s.metrics.BridgeMessages.WithLabelValues("outbound", string(protocol.TypeErrorEvent)).Inc()
			default:
				// Keep websocket writes single-threaded; drop if outbound queue is saturated.
			}
			continue
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) storeMode() string {
	if s.history == nil {
		return "disabled"
	}
	mode := strings.TrimSpace(s.history.Mode())
	if mode == "" {
		return "disabled"
	}
	return mode
}
