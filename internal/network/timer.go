package network

import "time"

// Timer tracks a single receive deadline across several partial reads
type Timer struct {
	timeout time.Duration
	started time.Time
	running bool
	now     func() time.Time
}

// NewTimer creates a stopped timer
func NewTimer(timeout time.Duration) *Timer {
	return &Timer{
		timeout: timeout,
		now:     time.Now,
	}
}

// SetTimeout changes the duration used by the next Start
func (t *Timer) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Start (re)starts the timer from now
func (t *Timer) Start() {
	t.started = t.now()
	t.running = true
}

// Stop stops the timer
func (t *Timer) Stop() {
	t.running = false
}

// IsRunning returns true if the timer is started and not expired
func (t *Timer) IsRunning() bool {
	return t.running && !t.HasExpired()
}

// HasExpired reports whether a started timer has reached its timeout
func (t *Timer) HasExpired() bool {
	if !t.running {
		return false
	}
	return t.Elapsed() >= t.timeout
}

// Elapsed returns time since Start
func (t *Timer) Elapsed() time.Duration {
	if !t.running {
		return 0
	}
	return t.now().Sub(t.started)
}

// Remaining returns time left before expiry, never negative
func (t *Timer) Remaining() time.Duration {
	if !t.running {
		return 0
	}
	return max(0, t.timeout-t.Elapsed())
}
