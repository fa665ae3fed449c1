package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/protocol"
)

type handlerFunc func(ctx context.Context, msg protocol.MessageUpsert) Route

func (f handlerFunc) Handle(ctx context.Context, msg protocol.MessageUpsert) Route {
	return f(ctx, msg)
}

func testMetrics(name string) *observability.Metrics {
	return observability.NewMetrics("test_bridge_" + name + "_" + time.Now().Format("150405000000000"))
}

func startHub(t *testing.T, h *Hub) (chan any, chan any, func()) {
	t.Helper()
	inbound := make(chan any, 16)
	outbound := make(chan any, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunConnection(context.Background(), inbound, outbound)
	}()

	select {
	case msg := <-outbound:
		ev, ok := msg.(protocol.SystemEvent)
		if !ok || ev.Code != "bridge_attached" {
			t.Fatalf("first frame = %#v, want bridge_attached event", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for bridge_attached")
	}

	stop := func() {
		close(inbound)
		<-done
	}
	return inbound, outbound, stop
}

func TestHubSendWithoutBridge(t *testing.T) {
	h := NewHub(nil, nil)
	err := h.Send(context.Background(), "1@g.us", laundry.Outbound{Text: "oi"})
	if !errors.Is(err, ErrNoBridge) {
		t.Fatalf("Send() error = %v, want %v", err, ErrNoBridge)
	}
}

func TestHubSendWritesFrameAndTracksAck(t *testing.T) {
	h := NewHub(nil, testMetrics("send"))
	inbound, outbound, stop := startHub(t, h)
	defer stop()

	if !h.Connected() {
		t.Fatalf("Connected() = false, want true")
	}

	err := h.Send(context.Background(), "1@g.us", laundry.Outbound{Text: "oi", Mentions: []string{"a@s"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	frame, ok := (<-outbound).(protocol.SendMessage)
	if !ok {
		t.Fatalf("outbound frame is not send_message")
	}
	if frame.To != "1@g.us" || frame.Text != "oi" || len(frame.Mentions) != 1 {
		t.Fatalf("frame = %+v, want text for 1@g.us with one mention", frame)
	}
	if frame.RequestID == "" {
		t.Fatalf("frame request id is empty")
	}
	if got := h.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	inbound <- protocol.SendResult{Type: protocol.TypeSendResult, RequestID: frame.RequestID}
	deadline := time.Now().Add(2 * time.Second)
	for h.Pending() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Pending() = %d after ack, want 0", h.Pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubForwardsUpserts(t *testing.T) {
	got := make(chan protocol.MessageUpsert, 1)
	h := NewHub(handlerFunc(func(_ context.Context, msg protocol.MessageUpsert) Route {
		got <- msg
		return RouteLaundry
	}), nil)
	inbound, _, stop := startHub(t, h)
	defer stop()

	inbound <- upsert("1@g.us", "a@s", "Lavanderia", "menu")
	select {
	case msg := <-got:
		if msg.Text() != "menu" {
			t.Fatalf("forwarded text = %q, want %q", msg.Text(), "menu")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("upsert was not forwarded")
	}
}

func TestHubDetachesOnClose(t *testing.T) {
	h := NewHub(nil, nil)
	_, _, stop := startHub(t, h)
	stop()

	if h.Connected() {
		t.Fatalf("Connected() = true after close, want false")
	}
	if err := h.Send(context.Background(), "1@g.us", laundry.Outbound{Text: "oi"}); !errors.Is(err, ErrNoBridge) {
		t.Fatalf("Send() error = %v, want %v", err, ErrNoBridge)
	}
}

func TestHubOutboundFull(t *testing.T) {
	h := NewHub(nil, nil)
	inbound := make(chan any)
	outbound := make(chan any) // unbuffered and never drained
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunConnection(context.Background(), inbound, outbound)
	}()
	defer func() {
		close(inbound)
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !h.Connected() {
		if time.Now().After(deadline) {
			t.Fatalf("bridge never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	err := h.Send(context.Background(), "1@g.us", laundry.Outbound{Text: "oi"})
	if !errors.Is(err, ErrOutboundFull) {
		t.Fatalf("Send() error = %v, want %v", err, ErrOutboundFull)
	}
	if h.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", h.Pending())
	}
}
