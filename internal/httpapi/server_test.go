package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lavanderia-bot/laundrybot/internal/bridge"
	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/config"
	"github.com/lavanderia-bot/laundrybot/internal/content"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/protocol"
	"github.com/lavanderia-bot/laundrybot/internal/store"
)

const testGroup = "120363000000000009@g.us"

type testStack struct {
	ts    *httptest.Server
	clock *clock.Fake
	store *store.InMemoryStore
}

func newTestStack(t *testing.T, name string, cfg config.Config) *testStack {
	t.Helper()
	zone := time.FixedZone("BRT", -3*60*60)
	fake := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, zone))
	metrics := observability.NewMetrics("test_httpapi_" + name + "_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	st := store.NewInMemoryStore()

	policy := laundry.DefaultPolicy()
	policy.Location = zone

	var hub *bridge.Hub
	svc := laundry.NewService(laundry.ServiceConfig{
		Clock:   fake,
		Policy:  policy,
		Content: content.Default(),
		Sink:    sinkFunc(func(ctx context.Context, conv string, msg laundry.Outbound) error { return hub.Send(ctx, conv, msg) }),
		Metrics: metrics,
		Usage:   st,
	})
	router := bridge.NewRouter(bridge.RouterConfig{
		LaundryKeyword:  "lavanderia",
		PackagesKeyword: "jk",
		Store:           st,
		Laundry:         svc,
		Clock:           fake,
	})
	hub = bridge.NewHub(router, metrics)

	srv := New(cfg, svc, router, hub, st, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testStack{ts: ts, clock: fake, store: st}
}

type sinkFunc func(ctx context.Context, conv string, msg laundry.Outbound) error

func (f sinkFunc) Send(ctx context.Context, conv string, msg laundry.Outbound) error {
	return f(ctx, conv, msg)
}

func dialBridge(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/bridge/ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		t.Fatalf("dial bridge error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })

	var attached protocol.SystemEvent
	readFrame(t, conn, &attached)
	if attached.Code != "bridge_attached" {
		t.Fatalf("first frame code = %q, want %q", attached.Code, "bridge_attached")
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(out); err != nil {
		t.Fatalf("read frame error = %v", err)
	}
}

func sendText(t *testing.T, conn *websocket.Conn, sender, text string) {
	t.Helper()
	msg := protocol.MessageUpsert{
		Type:         protocol.TypeMessageUpsert,
		Key:          protocol.MessageKey{RemoteJID: testGroup, Participant: sender},
		Message:      &protocol.MessageContent{Conversation: text},
		GroupSubject: "Lavanderia Casa do Estudante",
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write frame error = %v", err)
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func TestStatusPage(t *testing.T) {
	stack := newTestStack(t, "root", config.Config{})

	res, err := http.Get(stack.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if string(body) != statusText {
		t.Fatalf("GET / body = %q, want %q", body, statusText)
	}

	var health map[string]any
	if code := getJSON(t, stack.ts.URL+"/healthz", &health); code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", code, http.StatusOK)
	}
	if health["store_mode"] != "in-memory" {
		t.Fatalf("store_mode = %v, want %v", health["store_mode"], "in-memory")
	}

	var ready map[string]any
	getJSON(t, stack.ts.URL+"/readyz", &ready)
	if ready["bridge_connected"] != false {
		t.Fatalf("bridge_connected = %v, want false", ready["bridge_connected"])
	}
}

func TestBridgeRoundTripAndGroupStatus(t *testing.T) {
	stack := newTestStack(t, "roundtrip", config.Config{})
	conn := dialBridge(t, stack.ts, nil)

	sendText(t, conn, "5551000001@s.whatsapp.net", "3")
	var started protocol.SendMessage
	readFrame(t, conn, &started)
	if started.Type != protocol.TypeSendMessage || started.To != testGroup {
		t.Fatalf("reply frame = %+v, want send_message to %s", started, testGroup)
	}
	if !strings.Contains(started.Text, "Lavagem iniciada às 09:00") {
		t.Fatalf("reply text = %q, want session start", started.Text)
	}

	var st laundry.Status
	if code := getJSON(t, stack.ts.URL+"/v1/laundry/groups/"+testGroup, &st); code != http.StatusOK {
		t.Fatalf("group status code = %d, want %d", code, http.StatusOK)
	}
	if !st.Busy || st.Session == nil || st.Session.Holder != "5551000001@s.whatsapp.net" {
		t.Fatalf("group status = %+v, want busy with holder", st)
	}

	var groups struct {
		Groups []map[string]any `json:"groups"`
	}
	getJSON(t, stack.ts.URL+"/v1/laundry/groups", &groups)
	if len(groups.Groups) != 1 || groups.Groups[0]["kind"] != "laundry" {
		t.Fatalf("groups = %+v, want one laundry group", groups.Groups)
	}

	stack.clock.Advance(30 * time.Minute)
	sendText(t, conn, "5551000001@s.whatsapp.net", "4")
	var finished protocol.SendMessage
	readFrame(t, conn, &finished)
	if !strings.Contains(finished.Text, "Duração: 0h 30min") {
		t.Fatalf("finish text = %q, want duration", finished.Text)
	}

	var history struct {
		Usage []store.UsageRecord `json:"usage"`
	}
	if code := getJSON(t, stack.ts.URL+"/v1/laundry/groups/"+testGroup+"/history?limit=5", &history); code != http.StatusOK {
		t.Fatalf("history code = %d, want %d", code, http.StatusOK)
	}
	if len(history.Usage) != 1 || history.Usage[0].Duration != 30*time.Minute {
		t.Fatalf("history = %+v, want one 30m record", history.Usage)
	}
}

func TestBridgeRejectsInvalidFrame(t *testing.T) {
	stack := newTestStack(t, "invalid", config.Config{})
	conn := dialBridge(t, stack.ts, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write error = %v", err)
	}
	var ev protocol.ErrorEvent
	readFrame(t, conn, &ev)
	if ev.Code != "invalid_bridge_message" {
		t.Fatalf("error code = %q, want %q", ev.Code, "invalid_bridge_message")
	}
}

func TestBridgeToken(t *testing.T) {
	stack := newTestStack(t, "token", config.Config{BridgeToken: "s3cret"})
	wsURL := "ws" + strings.TrimPrefix(stack.ts.URL, "http") + "/v1/bridge/ws"

	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial without token succeeded, want error")
	}
	if res == nil || res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token response = %v, want 401", res)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer s3cret")
	dialBridge(t, stack.ts, header)
}

func TestGroupEndpointsValidation(t *testing.T) {
	stack := newTestStack(t, "validation", config.Config{})

	if code := getJSON(t, stack.ts.URL+"/v1/laundry/groups/unknown@g.us", nil); code != http.StatusNotFound {
		t.Fatalf("unknown group status = %d, want %d", code, http.StatusNotFound)
	}
	if code := getJSON(t, stack.ts.URL+"/v1/laundry/groups/"+testGroup+"/history?limit=zero", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", code, http.StatusBadRequest)
	}
}
