// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync"
	"time"
)

// Time is a monotonic instant, expressed as the offset from the epoch of the
// Clock that produced it. Values are only comparable with other readings of
// the same clock.
type Time = time.Duration

// Clock is the monotonic time source of a RunLoop.
type Clock interface {
	// Now returns the current time. Successive calls must not decrease.
	Now() Time
}

// monotonicClock reads the runtime's monotonic clock relative to an anchor
// captured at construction, so wall-clock adjustments never leak in.
type monotonicClock struct {
	anchor time.Time
}

// NewMonotonicClock returns a Clock backed by the runtime monotonic clock,
// with its epoch at the moment of the call.
func NewMonotonicClock() Clock {
	return &monotonicClock{anchor: time.Now()}
}

func (c *monotonicClock) Now() Time {
	return time.Since(c.anchor)
}

// processClock is shared by loops that don't configure a clock, which keeps
// Time values comparable across loops in the same process.
var processClock = NewMonotonicClock()

// ManualClock is a Clock that only moves when told to. It is intended for
// tests that need to simulate stalls.
type ManualClock struct {
	mu  sync.Mutex
	now Time
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative values are ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
