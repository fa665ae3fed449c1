package laundry

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/content"
	"github.com/lavanderia-bot/laundrybot/internal/observability"
	"github.com/lavanderia-bot/laundrybot/internal/policy"
	"github.com/lavanderia-bot/laundrybot/internal/store"
	"github.com/lavanderia-bot/laundrybot/internal/weather"
)

// UsageRecorder persists finished sessions.
type UsageRecorder interface {
	SaveUsage(ctx context.Context, record store.UsageRecord) error
}

// ServiceConfig is shared by every laundry group.
type ServiceConfig struct {
	Clock           clock.Clock
	Policy          Policy
	Content         content.Pack
	Sink            Sink
	Weather         weather.Provider
	WeatherLocation string
	Metrics         *observability.Metrics
	Usage           UsageRecorder
	UsageTimeout    time.Duration
}

// Service keeps one Dispatcher per laundry conversation. Each group owns
// its own machine state; nothing is shared between groups.
type Service struct {
	cfg ServiceConfig

	mu          sync.Mutex
	dispatchers map[string]*Dispatcher
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.UsageTimeout <= 0 {
		cfg.UsageTimeout = 5 * time.Second
	}
	return &Service{cfg: cfg, dispatchers: make(map[string]*Dispatcher)}
}

// Handle routes a message to the dispatcher of its conversation.
func (s *Service) Handle(ctx context.Context, in Inbound) []Outbound {
	out := s.dispatcher(in.Conversation).Handle(ctx, in)
	s.refreshGauges()
	return out
}

// Status returns the machine state of a conversation the service has seen.
func (s *Service) Status(conversation string) (Status, bool) {
	s.mu.Lock()
	d, ok := s.dispatchers[conversation]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return d.Status(), true
}

// Conversations lists the conversations with live state, sorted.
func (s *Service) Conversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dispatchers))
	for id := range s.dispatchers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Service) ActiveCount() int {
	count := 0
	for _, st := range s.statuses() {
		if st.Busy {
			count++
		}
	}
	return count
}

func (s *Service) dispatcher(conversation string) *Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dispatchers[conversation]; ok {
		return d
	}
	d := NewDispatcher(Config{
		Conversation:    conversation,
		Clock:           s.cfg.Clock,
		Policy:          s.cfg.Policy,
		Content:         s.cfg.Content,
		Sink:            s.cfg.Sink,
		Weather:         s.cfg.Weather,
		WeatherLocation: s.cfg.WeatherLocation,
		Metrics:         s.cfg.Metrics,
		OnFinish:        s.recordUsage,
	})
	s.dispatchers[conversation] = d
	return d
}

func (s *Service) statuses() []Status {
	s.mu.Lock()
	ds := make([]*Dispatcher, 0, len(s.dispatchers))
	for _, d := range s.dispatchers {
		ds = append(ds, d)
	}
	s.mu.Unlock()

	out := make([]Status, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Status())
	}
	return out
}

func (s *Service) refreshGauges() {
	if s.cfg.Metrics == nil {
		return
	}
	active, queued := 0, 0
	for _, st := range s.statuses() {
		if st.Busy {
			active++
		}
		queued += len(st.Queue)
	}
	s.cfg.Metrics.ActiveSessions.Set(float64(active))
	s.cfg.Metrics.QueueLength.Set(float64(queued))
}

func (s *Service) recordUsage(conversation string, f Finished) {
	if s.cfg.Usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.UsageTimeout)
	defer cancel()
	err := s.cfg.Usage.SaveUsage(ctx, store.UsageRecord{
		ConversationID: conversation,
		Holder:         f.Session.Holder,
		StartedAt:      f.Session.StartedAt,
		FinishedAt:     f.FinishedAt,
		Duration:       f.Duration,
		Overtime:       f.Overtime,
	})
	if err != nil {
		log.Printf("usage record for %s failed: %v", policy.RedactIdentity(f.Session.Holder), err)
	}
}
