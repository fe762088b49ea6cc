// Package timer implements the per-question countdown.
//
// A Timer only counts; it does not schedule anything. The goroutine that owns a
// session drives it from a time.Ticker and stops that ticker on teardown, so a
// stale callback can never reach a later question.
package timer

import "time"

// DefaultTick is the countdown granularity.
const DefaultTick = time.Second

// Timer is a countdown in whole seconds. Not safe for concurrent use.
type Timer struct {
	remaining int
	running   bool
	expired   bool
	starts    int
}

// Start arms the timer with a fresh budget, discarding any previous countdown.
func (t *Timer) Start(allowedSeconds int) {
	if allowedSeconds < 0 {
		allowedSeconds = 0
	}
	t.remaining = allowedSeconds
	t.running = true
	t.expired = false
	t.starts++
}

// Tick decrements the countdown. It reports true exactly once, on the tick that
// reaches zero; a stopped or expired timer ignores ticks.
func (t *Timer) Tick() bool {
	if !t.running {
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining == 0 {
		t.running = false
		t.expired = true
		return true
	}
	return false
}

// Stop freezes the countdown so it can no longer expire.
func (t *Timer) Stop() {
	t.running = false
}

// Remaining returns the seconds left on the current countdown.
func (t *Timer) Remaining() int {
	return t.remaining
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	return t.running
}

// Expired reports whether the current countdown reached zero.
func (t *Timer) Expired() bool {
	return t.expired
}

// Starts counts how many countdowns were started, one per question.
func (t *Timer) Starts() int {
	return t.starts
}
