package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer schedules the pacing delays between hearing steps. Scheduled
// functions must be cancellable so that a reset never lets a stale step
// fire afterwards.
type Timer interface {
	// ScheduleAfter runs fn after delay and returns a cancellation id.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel stops the scheduled function with the given id; cancelling an
	// unknown or already-fired id is not an error.
	Cancel(id string) error

	// Stop cancels everything still scheduled.
	Stop()
}

// SimpleTimer implements Timer using the standard time package.
type SimpleTimer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter schedules fn to run after delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.mu.Lock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleAfter", "id", id, "delay", delay)
	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})

	t.mu.Lock()
	t.timers[id] = timer
	t.mu.Unlock()
	return id, nil
}

// Cancel cancels a scheduled function by id.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
	}
	return nil
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	slog.Debug("SimpleTimer stopping all timers", "count", len(t.timers))
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
