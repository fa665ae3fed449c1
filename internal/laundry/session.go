package laundry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
)

var (
	ErrOutsideWindow   = errors.New("outside operating window")
	ErrBusy            = errors.New("machine is busy")
	ErrAlreadyHolder   = errors.New("requester already holds the machine")
	ErrNoActiveSession = errors.New("no active session")
	ErrNotHolder       = errors.New("requester does not hold the machine")
)

// Policy holds the fixed scheduling rules of the machine.
type Policy struct {
	SessionLength time.Duration
	WarningLead   time.Duration
	// Starts are allowed from OpenHour:00 up to, not including, CloseHour:00.
	OpenHour  int
	CloseHour int
	Location  *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		SessionLength: 2 * time.Hour,
		WarningLead:   10 * time.Minute,
		OpenHour:      7,
		CloseHour:     20,
		Location:      time.UTC,
	}
}

// Local converts t to the policy's time zone.
func (p Policy) Local(t time.Time) time.Time {
	if p.Location == nil {
		return t
	}
	return t.In(p.Location)
}

// InWindow reports whether a session may start at t.
func (p Policy) InWindow(t time.Time) bool {
	h := p.Local(t).Hour()
	return h >= p.OpenHour && h < p.CloseHour
}

// Session is the record of who holds the machine.
type Session struct {
	Token        string    `json:"-"`
	Holder       string    `json:"holder"`
	StartedAt    time.Time `json:"started_at"`
	ScheduledEnd time.Time `json:"scheduled_end"`
}

// Finished describes a session that was closed by its holder.
type Finished struct {
	Session    Session
	FinishedAt time.Time
	Duration   time.Duration
	Overtime   bool
}

// SessionManager owns the busy/idle state of one machine and its
// completion warning timer.
type SessionManager struct {
	mu        sync.Mutex
	clock     clock.Clock
	policy    Policy
	active    *Session
	timer     clock.Timer
	onWarning func(Session)
}

func NewSessionManager(c clock.Clock, policy Policy) *SessionManager {
	if c == nil {
		c = clock.Real()
	}
	return &SessionManager{clock: c, policy: policy}
}

// SetWarningHook registers the callback run when a session reaches its
// warning time. The hook runs without the manager lock held.
func (m *SessionManager) SetWarningHook(hook func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWarning = hook
}

// TryStart gives the machine to requester if it is idle and now falls in
// the operating window.
func (m *SessionManager) TryStart(requester string, now time.Time) (Session, error) {
	if !m.policy.InWindow(now) {
		return Session{}, ErrOutsideWindow
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		if m.active.Holder == requester {
			return *m.active, ErrAlreadyHolder
		}
		return *m.active, ErrBusy
	}

	s := &Session{
		Token:        uuid.NewString(),
		Holder:       requester,
		StartedAt:    now,
		ScheduledEnd: now.Add(m.policy.SessionLength),
	}
	m.active = s

	if delay := s.ScheduledEnd.Add(-m.policy.WarningLead).Sub(now); delay > 0 {
		token := s.Token
		m.timer = m.clock.AfterFunc(delay, func() { m.fireWarning(token) })
	}
	return *s, nil
}

// TryFinish closes the session held by requester.
func (m *SessionManager) TryFinish(requester string, now time.Time) (Finished, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Finished{}, ErrNoActiveSession
	}
	if m.active.Holder != requester {
		return Finished{}, ErrNotHolder
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	s := *m.active
	m.active = nil

	d := now.Sub(s.StartedAt)
	if d < 0 {
		d = 0
	}
	return Finished{
		Session:    s,
		FinishedAt: now,
		Duration:   d,
		Overtime:   d > m.policy.SessionLength,
	}, nil
}

func (m *SessionManager) IsIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == nil
}

func (m *SessionManager) CurrentHolder() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.Holder, true
}

// Snapshot returns a copy of the active session.
func (m *SessionManager) Snapshot() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return *m.active, true
}

func (m *SessionManager) Policy() Policy {
	return m.policy
}

// fireWarning is a no-op unless token still names the active session.
func (m *SessionManager) fireWarning(token string) {
	m.mu.Lock()
	if m.active == nil || m.active.Token != token {
		m.mu.Unlock()
		return
	}
	s := *m.active
	m.timer = nil
	hook := m.onWarning
	m.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}
