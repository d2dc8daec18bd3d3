// Package timer provides cancelable one-shot task scheduling.
package timer

import (
	"sync"
	"time"
)

// Handle identifies a scheduled task within a Timer.
type Handle int64

// Task is a deferred unit of work.
type Task func()

// Timer schedules one-shot tasks for future execution. Tasks that have
// fired remove themselves; pending tasks can be killed individually or
// all at once.
type Timer struct {
	mu      sync.Mutex
	nextID  Handle
	pending map[Handle]*time.Timer
}

// New returns an empty Timer.
func New() *Timer {
	return &Timer{pending: make(map[Handle]*time.Timer)}
}

// FireIn runs task once after the given delay. A zero delay fires the
// task immediately; a negative delay never fires it. The returned
// handle can be passed to Kill while the task is still pending.
func (t *Timer) FireIn(delay time.Duration, task Task) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID

	if delay < 0 {
		return id
	}

	t.pending[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		task()
	})
	return id
}

// FireAt runs task once at the given time. Times in the past fire
// immediately.
func (t *Timer) FireAt(at time.Time, task Task) Handle {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	return t.FireIn(delay, task)
}

// Kill cancels a pending task. Killing a task that already fired or
// was never scheduled is a no-op. Returns true if the task was still
// pending.
func (t *Timer) Kill(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt, ok := t.pending[h]
	if !ok {
		return false
	}
	delete(t.pending, h)
	return tt.Stop()
}

// KillAll cancels every pending task.
func (t *Timer) KillAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, tt := range t.pending {
		tt.Stop()
		delete(t.pending, id)
	}
}

// Pending returns the number of tasks still scheduled.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
