package laundry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
)

var brt = time.FixedZone("BRT", -3*60*60)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, brt)
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Location = brt
	return p
}

func newTestManager(start time.Time) (*SessionManager, *clock.Fake) {
	c := clock.NewFake(start)
	return NewSessionManager(c, testPolicy()), c
}

func TestTryStartSchedulesTwoHourSession(t *testing.T) {
	m, _ := newTestManager(at(9, 0))

	s, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Holder)
	assert.Equal(t, at(11, 0), s.ScheduledEnd)
	assert.NotEmpty(t, s.Token)
	assert.False(t, m.IsIdle())

	holder, ok := m.CurrentHolder()
	require.True(t, ok)
	assert.Equal(t, "alice", holder)
}

func TestTryStartRejectsOutsideWindow(t *testing.T) {
	cases := []time.Time{at(20, 0), at(21, 30), at(23, 59), at(6, 59), at(0, 0)}
	for _, now := range cases {
		m, _ := newTestManager(now)
		_, err := m.TryStart("alice", now)
		assert.ErrorIs(t, err, ErrOutsideWindow, "start at %s", now.Format("15:04"))
		assert.True(t, m.IsIdle())
	}

	m, _ := newTestManager(at(7, 0))
	_, err := m.TryStart("alice", at(7, 0))
	require.NoError(t, err)
	m2, _ := newTestManager(at(19, 59))
	_, err = m2.TryStart("alice", at(19, 59))
	require.NoError(t, err)
}

func TestTryStartAfterCloseRejectsEvenWhenBusy(t *testing.T) {
	m, c := newTestManager(at(18, 30))
	_, err := m.TryStart("alice", at(18, 30))
	require.NoError(t, err)

	c.Set(at(20, 5))
	_, err = m.TryStart("bob", at(20, 5))
	assert.ErrorIs(t, err, ErrOutsideWindow)
}

func TestTryStartWhileOccupied(t *testing.T) {
	m, _ := newTestManager(at(9, 0))
	_, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)

	s, err := m.TryStart("bob", at(9, 10))
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "alice", s.Holder)

	_, err = m.TryStart("alice", at(9, 20))
	assert.ErrorIs(t, err, ErrAlreadyHolder)
}

func TestTryFinishRejectsWrongHolder(t *testing.T) {
	m, _ := newTestManager(at(9, 0))
	_, err := m.TryFinish("alice", at(9, 30))
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = m.TryStart("alice", at(9, 0))
	require.NoError(t, err)

	_, err = m.TryFinish("bob", at(9, 30))
	assert.ErrorIs(t, err, ErrNotHolder)
	holder, ok := m.CurrentHolder()
	require.True(t, ok)
	assert.Equal(t, "alice", holder)
}

func TestTryFinishReportsOvertime(t *testing.T) {
	m, _ := newTestManager(at(9, 0))
	_, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)

	f, err := m.TryFinish("alice", at(11, 30))
	require.NoError(t, err)
	assert.Equal(t, 150*time.Minute, f.Duration)
	assert.True(t, f.Overtime)
	assert.True(t, m.IsIdle())
}

func TestTryFinishExactlyOnTimeIsNotOvertime(t *testing.T) {
	m, _ := newTestManager(at(9, 0))
	_, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)

	f, err := m.TryFinish("alice", at(11, 0))
	require.NoError(t, err)
	assert.False(t, f.Overtime)
}

func TestWarningFiresTenMinutesBeforeEnd(t *testing.T) {
	m, c := newTestManager(at(9, 0))
	var warned []Session
	m.SetWarningHook(func(s Session) { warned = append(warned, s) })

	_, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)

	c.Advance(109 * time.Minute)
	assert.Empty(t, warned)
	c.Advance(time.Minute)
	require.Len(t, warned, 1)
	assert.Equal(t, "alice", warned[0].Holder)
	assert.Equal(t, 0, c.Pending())
}

func TestWarningCancelledByFinish(t *testing.T) {
	m, c := newTestManager(at(9, 0))
	warned := 0
	m.SetWarningHook(func(Session) { warned++ })

	_, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)
	c.Advance(30 * time.Minute)
	_, err = m.TryFinish("alice", c.Now())
	require.NoError(t, err)

	c.Advance(3 * time.Hour)
	assert.Equal(t, 0, warned)
}

func TestStaleWarningDoesNotHitNewerSession(t *testing.T) {
	c := clock.NewFake(at(9, 0))
	m := NewSessionManager(c, testPolicy())
	var warned []string
	m.SetWarningHook(func(s Session) { warned = append(warned, s.Holder) })

	first, err := m.TryStart("alice", at(9, 0))
	require.NoError(t, err)
	// A timer that could not be stopped in time still carries the old token.
	m.fireWarning(first.Token)
	require.Equal(t, []string{"alice"}, warned)

	_, err = m.TryFinish("alice", at(9, 5))
	require.NoError(t, err)
	_, err = m.TryStart("bob", at(9, 5))
	require.NoError(t, err)

	m.fireWarning(first.Token)
	assert.Equal(t, []string{"alice"}, warned)

	c.Advance(110 * time.Minute)
	assert.Equal(t, []string{"alice", "bob"}, warned)
}
