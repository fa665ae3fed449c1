package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists groups and usage history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_groups (
			conversation_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS laundry_usage (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			holder TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			duration_seconds BIGINT NOT NULL,
			overtime BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_laundry_usage_conversation_finished ON laundry_usage (conversation_id, finished_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) RegisterGroup(ctx context.Context, record GroupRecord) error {
	if record.RegisteredAt.IsZero() {
		record.RegisteredAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_groups (conversation_id, kind, subject, registered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (conversation_id) DO NOTHING`,
		record.ConversationID,
		string(record.Kind),
		record.Subject,
		record.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("register group: %w", err)
	}
	return nil
}

func (s *PostgresStore) Groups(ctx context.Context) ([]GroupRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, kind, subject, registered_at FROM chat_groups ORDER BY registered_at`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var (
			g    GroupRecord
			kind string
		)
		if err := rows.Scan(&g.ConversationID, &kind, &g.Subject, &g.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		g.Kind = GroupKind(kind)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveUsage(ctx context.Context, record UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO laundry_usage (id, conversation_id, holder, started_at, finished_at, duration_seconds, overtime)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		record.ConversationID,
		record.Holder,
		record.StartedAt,
		record.FinishedAt,
		int64(record.Duration/time.Second),
		record.Overtime,
	)
	if err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentUsage(ctx context.Context, conversationID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, holder, started_at, finished_at, duration_seconds, overtime
		 FROM laundry_usage WHERE conversation_id=$1 ORDER BY finished_at DESC LIMIT $2`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent usage: %w", err)
	}
	defer rows.Close()

	items := make([]UsageRecord, 0, limit)
	for rows.Next() {
		var (
			r       UsageRecord
			seconds int64
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.Holder, &r.StartedAt, &r.FinishedAt, &seconds, &r.Overtime); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		r.Duration = time.Duration(seconds) * time.Second
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Mode() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
