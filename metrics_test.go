// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Disabled(t *testing.T) {
	l := newTestLoop(t)
	l.ScheduleRel(time.Hour, 0, false)
	l.DoLater(func() {})

	m := l.Metrics()
	assert.Equal(t, 1, m.PendingActions)
	assert.Equal(t, 1, m.Timers)
	assert.Zero(t, m.Cycles)
	assert.Zero(t, m.Latency)

	l.DoLater(l.Stop)
	require.NoError(t, l.Run(0))
	assert.Zero(t, l.Metrics().ActionsRun)
}

func TestMetrics_Counts(t *testing.T) {
	clock := NewManualClock(time.Second)
	l := newTestLoop(t, WithClock(clock), WithMetrics(true), WithRateWindow(10*time.Second))

	for range 10 {
		l.DoLater(func() {})
	}
	l.ScheduleFunc(0, 0, false, func(Time) {})
	l.ScheduleFunc(0, 0, false, func(Time) { panic("x") })
	l.ScheduleRel(time.Hour, 0, false)
	stopAfterCycles(l, 1)

	require.NoError(t, l.Run(0))

	m := l.Metrics()
	assert.Equal(t, uint64(1), m.Cycles)
	assert.Equal(t, uint64(10), m.ActionsRun)
	assert.Equal(t, uint64(2), m.TimersFired)
	assert.Equal(t, uint64(1), m.Panics)
	assert.Zero(t, m.ActionsDiscarded)
	assert.Zero(t, m.PendingActions)
	assert.Equal(t, 1, m.Timers)
	assert.Equal(t, 12, m.Latency.Count)
	// 10 actions at the same instant, 10s window
	assert.InDelta(t, 1.0, m.ActionRate, 1e-9)
}

func TestLoopMetrics_NilSafe(t *testing.T) {
	var m *loopMetrics
	m.cycle()
	m.action(0, time.Second)
	m.timer(time.Second)
	m.panicked()
	m.discarded(3)
	assert.Equal(t, MetricsSnapshot{}, m.snapshot(0))
}
