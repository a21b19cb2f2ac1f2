// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync"
	"time"

	"github.com/joeycumines/go-runloop/ratetrack"
)

// MetricsSnapshot is a point-in-time copy of a RunLoop's statistics.
//
// Counters and latency are only collected when the loop was created
// WithMetrics(true). PendingActions and Timers are always populated.
type MetricsSnapshot struct {
	// Latency summarizes the duration of individual callbacks (actions and
	// timer firings).
	Latency LatencySnapshot

	// ActionRate is the throughput of queued actions, per second, over the
	// configured rate window.
	ActionRate float64

	Cycles           uint64
	ActionsRun       uint64
	ActionsDiscarded uint64
	TimersFired      uint64
	Panics           uint64

	// PendingActions is the number of queued actions not yet run.
	PendingActions int

	// Timers is the number of entries in the timer heap, including
	// canceled timers that have not been removed yet.
	Timers int
}

// loopMetrics is written by the loop goroutine and read by Metrics, from any
// goroutine.
type loopMetrics struct {
	mu               sync.Mutex
	latency          latencyTracker
	rate             *ratetrack.Tracker
	cycles           uint64
	actionsRun       uint64
	actionsDiscarded uint64
	timersFired      uint64
	panics           uint64
}

func newLoopMetrics(rateWindow time.Duration) *loopMetrics {
	return &loopMetrics{
		latency: newLatencyTracker(),
		rate:    ratetrack.New(rateWindow),
	}
}

func (m *loopMetrics) cycle() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.cycles++
	m.mu.Unlock()
}

func (m *loopMetrics) action(now Time, took time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.actionsRun++
	m.rate.Update(1, now)
	m.latency.observe(took)
	m.mu.Unlock()
}

func (m *loopMetrics) timer(took time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.timersFired++
	m.latency.observe(took)
	m.mu.Unlock()
}

func (m *loopMetrics) panicked() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.panics++
	m.mu.Unlock()
}

func (m *loopMetrics) discarded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.mu.Lock()
	m.actionsDiscarded += uint64(n)
	m.mu.Unlock()
}

func (m *loopMetrics) snapshot(now Time) (s MetricsSnapshot) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Latency = m.latency.snapshot()
	s.ActionRate = m.rate.Rate(now)
	s.Cycles = m.cycles
	s.ActionsRun = m.actionsRun
	s.ActionsDiscarded = m.actionsDiscarded
	s.TimersFired = m.timersFired
	s.Panics = m.panics
	return
}
