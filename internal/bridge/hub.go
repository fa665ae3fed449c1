package bridge

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/policy"
	"github.com/lavanderia-bot/laundrybot/internal/protocol"
)

var (
	ErrNoBridge     = errors.New("no chat bridge attached")
	ErrOutboundFull = errors.New("bridge outbound queue full")
)

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg protocol.MessageUpsert) Route
}

// Hub tracks the attached chat bridge. It implements laundry.Sink by turning
// replies into send_message frames, and runs the inbound side of a bridge
// connection. A new connection replaces the previous one.
type Hub struct {
	handler MessageHandler
	metrics *observability.Metrics

	mu       sync.Mutex
	connID   string
	outbound chan<- any
	pending  map[string]time.Time
}

var _ laundry.Sink = (*Hub)(nil)

func NewHub(handler MessageHandler, metrics *observability.Metrics) *Hub {
	return &Hub{
		handler: handler,
		metrics: metrics,
		pending: make(map[string]time.Time),
	}
}

// Connected reports whether a bridge is attached.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outbound != nil
}

// Pending returns how many sends are still waiting for a send_result.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Send queues one outbound chat message on the attached bridge.
func (h *Hub) Send(ctx context.Context, conversation string, msg laundry.Outbound) error {
	frame := protocol.SendMessage{
		Type:      protocol.TypeSendMessage,
		RequestID: uuid.NewString(),
		To:        conversation,
		Text:      msg.Text,
		Mentions:  msg.Mentions,
	}

	h.mu.Lock()
	out := h.outbound
	if out == nil {
		h.mu.Unlock()
		return ErrNoBridge
	}
	h.pending[frame.RequestID] = time.Now()
	h.mu.Unlock()

	select {
	case out <- frame:
		h.observe("outbound", protocol.TypeSendMessage)
		return nil
	case <-ctx.Done():
		h.forget(frame.RequestID)
		return ctx.Err()
	default:
		h.forget(frame.RequestID)
		return ErrOutboundFull
	}
}

// RunConnection serves one bridge connection until inbound is closed or ctx
// ends. Messages are handled in arrival order.
func (h *Hub) RunConnection(ctx context.Context, inbound <-chan any, outbound chan<- any) error {
	id := h.attach(outbound)
	defer h.detach(id)

	select {
	case outbound <- protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "bridge_attached", Detail: id}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			h.dispatch(ctx, raw)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, raw any) {
	switch msg := raw.(type) {
	case protocol.MessageUpsert:
		h.observe("inbound", msg.Type)
		if h.handler != nil {
			h.handler.Handle(ctx, msg)
		}
	case protocol.SendResult:
		h.observe("inbound", msg.Type)
		h.ack(msg)
	case protocol.SystemEvent:
		h.observe("inbound", msg.Type)
		detail, _ := policy.RedactPII(msg.Detail)
		log.Printf("bridge event %s: %s", msg.Code, detail)
	default:
		log.Printf("bridge message of type %T ignored", raw)
	}
}

func (h *Hub) ack(res protocol.SendResult) {
	h.mu.Lock()
	sentAt, ok := h.pending[res.RequestID]
	delete(h.pending, res.RequestID)
	h.mu.Unlock()
	if !ok {
		return
	}
	if res.Error != "" {
		reason, _ := policy.RedactPII(res.Error)
		log.Printf("bridge rejected send %s after %s: %s", res.RequestID, time.Since(sentAt).Round(time.Millisecond), reason)
		if h.metrics != nil {
			h.metrics.SendErrors.WithLabelValues("bridge_rejected").Inc()
		}
	}
}

func (h *Hub) attach(outbound chan<- any) string {
	id := uuid.NewString()
	h.mu.Lock()
	replaced := h.outbound != nil
	h.connID = id
	h.outbound = outbound
	h.pending = make(map[string]time.Time)
	h.mu.Unlock()

	if replaced {
		log.Printf("bridge %s replaced the previous connection", id)
	} else {
		log.Printf("bridge %s attached", id)
	}
	if h.metrics != nil {
		h.metrics.BridgeConnected.Set(1)
	}
	return id
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	if h.connID != id {
		h.mu.Unlock()
		return
	}
	dropped := len(h.pending)
	h.connID = ""
	h.outbound = nil
	h.pending = make(map[string]time.Time)
	h.mu.Unlock()

	log.Printf("bridge %s detached (%d unacknowledged sends)", id, dropped)
	if h.metrics != nil {
		h.metrics.BridgeConnected.Set(0)
	}
}

func (h *Hub) forget(requestID string) {
	h.mu.Lock()
	delete(h.pending, requestID)
	h.mu.Unlock()
}

func (h *Hub) observe(direction string, t protocol.MessageType) {
	if h.metrics != nil {
		h.metrics.BridgeMessages.WithLabelValues(direction, string(t)).Inc()
	}
}
