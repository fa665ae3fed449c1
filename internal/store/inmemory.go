package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu     sync.RWMutex
	groups []GroupRecord
	usage  map[string][]UsageRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{usage: make(map[string][]UsageRecord)}
}

func (s *InMemoryStore) RegisterGroup(_ context.Context, record GroupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ConversationID == record.ConversationID {
			return nil
		}
	}
	if record.RegisteredAt.IsZero() {
		record.RegisteredAt = time.Now().UTC()
	}
	s.groups = append(s.groups, record)
	return nil
}

func (s *InMemoryStore) Groups(_ context.Context) ([]GroupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]GroupRecord(nil), s.groups...), nil
}

func (s *InMemoryStore) SaveUsage(_ context.Context, record UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.usage[record.ConversationID] = append(s.usage[record.ConversationID], record)
	return nil
}

func (s *InMemoryStore) RecentUsage(_ context.Context, conversationID string, limit int) ([]UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.usage[conversationID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]UsageRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Mode() string { return "in-memory" }

func (s *InMemoryStore) Close() error { return nil }
