// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ratetrack implements a cheap sliding-window rate estimator.
//
// A [Tracker] counts events in the current window, and blends in the rate
// of the previous window with a linear decay, so the estimate moves smoothly
// as windows roll over instead of dropping to zero at each boundary. A
// window with no updates for two full periods resets the estimate.
//
// Time is supplied by the caller as a monotonic offset, which keeps the
// tracker deterministic under test and usable with any clock.
package ratetrack
