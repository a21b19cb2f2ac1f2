// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ratetrack

import (
	"time"
)

// Tracker estimates a per-second rate over a sliding window.
//
// Thread Safety: NOT thread-safe, callers must synchronize.
type Tracker struct {
	window       time.Duration
	windowBegin  time.Duration
	count        float64
	previousRate float64
}

// New returns a Tracker with the given window, which must be positive.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		panic(`ratetrack: window must be positive`)
	}
	return &Tracker{window: window}
}

// Window returns the configured window.
func (x *Tracker) Window() time.Duration {
	return x.window
}

// Update records count events at now.
func (x *Tracker) Update(count float64, now time.Duration) {
	x.rollover(now)
	x.count += count
}

// Rate returns the estimated events per second at now: the count of the
// current window over the window length, plus the previous window's rate
// decayed linearly across the current window.
func (x *Tracker) Rate(now time.Duration) float64 {
	x.rollover(now)
	seconds := x.window.Seconds()
	rate := x.count / seconds
	if x.previousRate != 0 {
		elapsed := now - x.windowBegin
		if elapsed < 0 {
			elapsed = 0
		}
		if remaining := 1 - float64(elapsed)/float64(x.window); remaining > 0 {
			rate += x.previousRate * remaining
		}
	}
	return rate
}

// Reset discards all history.
func (x *Tracker) Reset() {
	x.windowBegin = 0
	x.count = 0
	x.previousRate = 0
}

func (x *Tracker) rollover(now time.Duration) {
	delta := now - x.windowBegin
	switch {
	case delta < x.window:
		// includes clock regressions, which are not specially handled
	case delta < 2*x.window:
		x.previousRate = x.count / x.window.Seconds()
		x.count = 0
		x.windowBegin += x.window
	default:
		x.previousRate = 0
		x.count = 0
		x.windowBegin = now
	}
}
