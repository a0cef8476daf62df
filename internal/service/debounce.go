package service

import (
	"sync"
	"time"
)

// debouncer is a per-key scheduled-task table. Scheduling a key cancels and
// restarts its outstanding timer, guaranteeing at most one in-flight task
// per key at a time. This is the engine's only concurrency control for
// remote update propagation.
type debouncer struct {
	window time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule runs fn after the debounce window unless the key is rescheduled
// or cancelled first.
func (d *debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}

	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any outstanding task for the key. Cancellation is explicit,
// never an implicit side effect.
func (d *debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
		delete(d.timers, key)
	}
}

// PendingCount reports how many keys have an outstanding task.
func (d *debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
