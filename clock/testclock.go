package clock

import (
	"sync"
	"time"
)

// TestClock is a manually-advanced Clock for deterministic tests of
// eviction timers and timelock-adjacent scheduling.
type TestClock struct {
	mu  sync.Mutex
	now time.Time

	waiters []testWaiter
}

type testWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewTestClock returns a TestClock starting at t.
func NewTestClock(t time.Time) *TestClock {
	return &TestClock{now: t}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *TestClock) TickAfter(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := c.now.Add(d)
	if !deadline.After(c.now) {
		ch <- c.now
		return ch
	}

	c.waiters = append(c.waiters, testWaiter{deadline: deadline, ch: ch})
	return ch
}

// SetTime moves the clock forward (or backward) to t, firing any pending
// TickAfter channels whose deadline has now passed.
func (c *TestClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(t) {
			w.ch <- t
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
}
