// Package debounce delays work until its input has been stable for a fixed interval.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the last function passed to Do once no other call to Do
// happened for the configured delay.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn, replacing any function still waiting for the delay to elapse.
// A zero or negative delay runs fn synchronously.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.delay <= 0 {
		d.timer = nil
		d.mu.Unlock()
		fn()
		return
	}
	d.timer = time.AfterFunc(d.delay, fn)
	d.mu.Unlock()
}

// Stop drops the pending function, if any. Later calls to Do are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
