package testutil

import (
	"sync"
	"time"
)

// DefaultClockStart is the first timestamp a RequestClock hands out:
// 2023-11-14T22:13:20Z in Unix milliseconds.
const DefaultClockStart int64 = 1_700_000_000_000

// RequestClock hands out strictly increasing request timestamps in Unix
// milliseconds, so scenarios that depend on "newer than lastModifiedAt"
// behave the same on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RequestClock struct {
	mu    sync.Mutex
	start int64
	last  int64
}

// NewRequestClock creates a clock whose first Next() returns start.
// A zero start means DefaultClockStart.
func NewRequestClock(start int64) *RequestClock {
	if start == 0 {
		start = DefaultClockStart
	}
	return &RequestClock{start: start, last: start - 1}
}

// Next returns the next timestamp, one millisecond after the previous one.
func (c *RequestClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return c.last
}

// Current returns the last timestamp handed out without advancing.
func (c *RequestClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Now returns Current as a time.Time, for use as a backend clock.
func (c *RequestClock) Now() time.Time {
	return time.UnixMilli(c.Current())
}

// Reset rewinds the clock so the next call to Next() returns start again.
func (c *RequestClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.start - 1
}
