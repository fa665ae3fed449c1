package laundry

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyQueued = errors.New("already in queue")
	ErrNotQueued     = errors.New("not in queue")
)

// QueueEntry is a 1-based position paired with the waiting identity.
type QueueEntry struct {
	Position int    `json:"position"`
	Identity string `json:"identity"`
}

// Queue is a FIFO of distinct identities. It has no knowledge of the
// machine state; callers decide when joining makes sense.
type Queue struct {
	mu      sync.RWMutex
	entries []string
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends id and returns its position and the new queue length.
// When id is already waiting it returns ErrAlreadyQueued together with the
// current position and leaves the order untouched.
func (q *Queue) Enqueue(id string) (position, total int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexLocked(id); i >= 0 {
		return i + 1, len(q.entries), ErrAlreadyQueued
	}
	q.entries = append(q.entries, id)
	return len(q.entries), len(q.entries), nil
}

// Dequeue removes id wherever it sits.
func (q *Queue) Dequeue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexLocked(id)
	if i < 0 {
		return ErrNotQueued
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return nil
}

// PopFront removes and returns the head of the queue.
func (q *Queue) PopFront() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return "", false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// Position returns the 1-based position of id, or 0 when absent.
func (q *Queue) Position(id string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.indexLocked(id) + 1
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

func (q *Queue) Snapshot() []QueueEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]QueueEntry, 0, len(q.entries))
	for i, id := range q.entries {
		out = append(out, QueueEntry{Position: i + 1, Identity: id})
	}
	return out
}

func (q *Queue) indexLocked(id string) int {
	for i, e := range q.entries {
		if e == id {
			return i
		}
	}
	return -1
}
