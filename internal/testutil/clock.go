package testutil

import "sync"

// Timeline hands out strictly decreasing timestamps, newest first, the way
// a feed is paginated.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Timeline struct {
	mu    sync.Mutex
	start int64
	step  int64
	n     int64
}

// NewTimeline creates a timeline whose first timestamp is start.
// A non-positive step defaults to 10.
func NewTimeline(start, step int64) *Timeline {
	if step <= 0 {
		step = 10
	}
	return &Timeline{start: start, step: step}
}

// Next returns the next, older, timestamp.
func (t *Timeline) Next() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.start - t.n*t.step
	t.n++
	return ts
}

// Current returns the last timestamp handed out, or start+step before the
// first call.
func (t *Timeline) Current() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start - (t.n-1)*t.step
}

// Reset rewinds the timeline. The next call to Next returns start.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n = 0
}
