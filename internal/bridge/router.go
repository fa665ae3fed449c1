package bridge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/policy"
	"github.com/lavanderia-bot/laundrybot/internal/protocol"
	"github.com/lavanderia-bot/laundrybot/internal/store"
)

// Route is the outcome of routing one inbound message.
type Route string

const (
	RouteIgnored      Route = "ignored"
	RouteLaundry      Route = "laundry"
	RoutePackages     Route = "packages"
	RouteUnregistered Route = "unregistered"
)

// LaundryHandler consumes messages from laundry groups.
type LaundryHandler interface {
	Handle(ctx context.Context, in laundry.Inbound) []laundry.Outbound
}

// GroupStore persists group registration.
type GroupStore interface {
	RegisterGroup(ctx context.Context, record store.GroupRecord) error
	Groups(ctx context.Context) ([]store.GroupRecord, error)
}

type RouterConfig struct {
	LaundryKeyword  string
	PackagesKeyword string
	Store           GroupStore
	Laundry         LaundryHandler
	Clock           clock.Clock
}

// Router claims groups by subject keyword and forwards their messages. A
// group is registered under one kind only; the first match wins forever.
type Router struct {
	laundryKeyword  string
	packagesKeyword string
	store           GroupStore
	laundry         LaundryHandler
	clock           clock.Clock

	mu     sync.RWMutex
	groups map[string]store.GroupRecord
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Router{
		laundryKeyword:  strings.ToLower(strings.TrimSpace(cfg.LaundryKeyword)),
		packagesKeyword: strings.ToLower(strings.TrimSpace(cfg.PackagesKeyword)),
		store:           cfg.Store,
		laundry:         cfg.Laundry,
		clock:           cfg.Clock,
		groups:          make(map[string]store.GroupRecord),
	}
}

// Load restores registrations persisted by a previous run.
func (r *Router) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.Groups(ctx)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[store.GroupKind]int{}
	for _, rec := range records {
		if _, ok := r.groups[rec.ConversationID]; ok {
			continue
		}
		r.groups[rec.ConversationID] = rec
		counts[rec.Kind]++
	}
	log.Printf("groups loaded: laundry=%d packages=%d", counts[store.GroupLaundry], counts[store.GroupPackages])
	return nil
}

// Groups lists registered groups ordered by conversation id.
func (r *Router) Groups() []store.GroupRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]store.GroupRecord, 0, len(r.groups))
	for _, rec := range r.groups {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out
}

// Handle routes one inbound message. Direct chats, messages without content
// and the bot's own messages are ignored.
func (r *Router) Handle(ctx context.Context, msg protocol.MessageUpsert) Route {
	if msg.Key.FromMe || msg.Message == nil || !msg.IsGroup() {
		return RouteIgnored
	}
	conversation := msg.Key.RemoteJID

	kind, ok := r.kindOf(conversation)
	if !ok {
		kind, ok = r.register(ctx, conversation, msg.GroupSubject)
	}
	if !ok {
		log.Printf("message from unregistered group %s", conversation)
		return RouteUnregistered
	}

	switch kind {
	case store.GroupLaundry:
		if r.laundry != nil {
			r.laundry.Handle(ctx, laundry.Inbound{
				Conversation: conversation,
				Sender:       msg.Sender(),
				Text:         msg.Text(),
			})
		}
		return RouteLaundry
	default:
		log.Printf("packages message in %s from %s (no handler)", conversation, policy.RedactIdentity(msg.Sender()))
		return RoutePackages
	}
}

func (r *Router) kindOf(conversation string) (store.GroupKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.groups[conversation]
	return rec.Kind, ok
}

func (r *Router) classify(subject string) (store.GroupKind, bool) {
	s := strings.ToLower(subject)
	switch {
	case r.laundryKeyword != "" && strings.Contains(s, r.laundryKeyword):
		return store.GroupLaundry, true
	case r.packagesKeyword != "" && strings.Contains(s, r.packagesKeyword):
		return store.GroupPackages, true
	default:
		return "", false
	}
}

func (r *Router) register(ctx context.Context, conversation, subject string) (store.GroupKind, bool) {
	kind, ok := r.classify(subject)
	if !ok {
		return "", false
	}
	rec := store.GroupRecord{
		ConversationID: conversation,
		Kind:           kind,
		Subject:        subject,
		RegisteredAt:   r.clock.Now().UTC(),
	}

	r.mu.Lock()
	if existing, dup := r.groups[conversation]; dup {
		r.mu.Unlock()
		return existing.Kind, true
	}
	r.groups[conversation] = rec
	r.mu.Unlock()

	log.Printf("%s group registered: %s", kind, conversation)
	if r.store != nil {
		if err := r.store.RegisterGroup(ctx, rec); err != nil {
			log.Printf("persist group %s failed: %v", conversation, err)
		}
	}
	return kind, true
}
