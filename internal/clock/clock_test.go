package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueCallbacksInOrder(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	var order []string
	c.AfterFunc(2*time.Minute, func() { order = append(order, "second") })
	c.AfterFunc(time.Minute, func() { order = append(order, "first") })
	c.AfterFunc(time.Hour, func() { order = append(order, "late") })

	c.Advance(5 * time.Minute)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
	if got := c.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	if want := time.Date(2026, 1, 1, 9, 5, 0, 0, time.UTC); !c.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestFakeStopPreventsCallback(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	fired := false
	timer := c.AfterFunc(time.Minute, func() { fired = true })
	if !timer.Stop() {
		t.Fatalf("Stop() = false, want true")
	}
	if timer.Stop() {
		t.Fatalf("second Stop() = true, want false")
	}
	c.Advance(time.Hour)
	if fired {
		t.Fatalf("stopped timer fired")
	}
}
