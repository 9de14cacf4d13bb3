package engine

import "fmt"

// Timer is the exam countdown. It is driven by Tick calls from the session
// loop and never goes below zero.
type Timer struct {
	remaining int
	warnAt    int
	running   bool
	stopped   bool
}

// NewTimer creates a stopped timer with the given duration and warning
// threshold, both in seconds.
func NewTimer(durationSeconds, warningSeconds int) *Timer {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return &Timer{remaining: durationSeconds, warnAt: warningSeconds}
}

// Start begins counting down. Starting an expired or stopped timer is a no-op.
func (t *Timer) Start() {
	if t.stopped || t.remaining == 0 {
		return
	}
	t.running = true
}

// Tick decrements the remaining time by one second. It returns true exactly
// once: on the tick that reaches zero. Ticks on a stopped timer do nothing.
func (t *Timer) Tick() bool {
	if !t.running || t.remaining <= 0 {
		return false
	}
	t.remaining--
	if t.remaining == 0 {
		t.running = false
		t.stopped = true
		return true
	}
	return false
}

// Stop cancels the countdown for good. No later tick or Start has any effect.
func (t *Timer) Stop() {
	t.running = false
	t.stopped = true
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int { return t.remaining }

// Running reports whether the timer is counting down.
func (t *Timer) Running() bool { return t.running }

// Stopped reports whether the timer reached zero or was cancelled.
func (t *Timer) Stopped() bool { return t.stopped }

// Warning reports whether the remaining time is within the warning threshold.
func (t *Timer) Warning() bool { return t.remaining <= t.warnAt }

// Clock formats the remaining time as mm:ss.
func (t *Timer) Clock() string { return FormatClock(t.remaining) }

// FormatClock formats seconds as zero-padded mm:ss. Minutes are not wrapped
// into hours, so 3600 formats as "60:00".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
