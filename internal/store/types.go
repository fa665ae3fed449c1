package store

import (
	"context"
	"time"
)

// GroupKind tells which handler serves a registered group.
type GroupKind string

const (
	GroupLaundry  GroupKind = "laundry"
	GroupPackages GroupKind = "packages"
)

// GroupRecord is a chat group the bot has claimed.
type GroupRecord struct {
	ConversationID string    `json:"conversation_id"`
	Kind           GroupKind `json:"kind"`
	Subject        string    `json:"subject"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// UsageRecord is one finished machine session.
type UsageRecord struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Holder         string        `json:"holder"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration_ns"`
	Overtime       bool          `json:"overtime"`
}

// Store persists group registration and machine usage history.
type Store interface {
	// RegisterGroup is a no-op when the conversation is already registered.
	RegisterGroup(ctx context.Context, record GroupRecord) error
	Groups(ctx context.Context) ([]GroupRecord, error)
	SaveUsage(ctx context.Context, record UsageRecord) error
	// RecentUsage returns up to limit records, oldest first.
	RecentUsage(ctx context.Context, conversationID string, limit int) ([]UsageRecord, error)
	Mode() string
	Close() error
}
