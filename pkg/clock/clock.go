// Package clock provides the time abstraction behind the enrichment debounce.
//
// Production code uses Real(). Tests use Fake(), whose AfterFunc callbacks
// fire synchronously from Advance in deadline order, so debounce behaviour is
// deterministic without sleeping.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts the two time operations the engine needs.
type Clock interface {
	Now() time.Time
	// AfterFunc waits for d, then calls f. Stop on the returned Timer
	// prevents the call if it has not started yet.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop returns true if the call was prevented.
	Stop() bool
}

type realClock struct{}

// Real returns the standard library clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FakeClock is a deterministic Clock. Time only moves when Advance is called.
// Do not call Advance from inside an AfterFunc callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	callback func()
	stopped  bool
	fired    bool
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run once the clock is advanced past d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	if d <= 0 {
		f()
		return stoppedTimer{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	waiter := &fakeWaiter{deadline: c.current.Add(d), callback: f}
	c.waiters = append(c.waiters, waiter)
	return &fakeTimer{clock: c, waiter: waiter}
}

// Advance moves time forward by d and runs every callback whose deadline has
// passed, in deadline order, on the calling goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	var due []*fakeWaiter
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		switch {
		case w.stopped || w.fired:
		case !w.deadline.After(now):
			w.fired = true
			due = append(due, w)
		default:
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		w.callback()
	}
}

// Pending reports how many callbacks are still scheduled.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			count++
		}
	}
	return count
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.waiter.stopped || t.waiter.fired {
		return false
	}
	t.waiter.stopped = true
	return true
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }
