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

func TestDefaultOptions(t *testing.T) {
	cfg, err := resolveLoopOptions(nil)
	require.NoError(t, err)

	assert.Nil(t, cfg.logger)
	assert.Equal(t, defaultLogRateLimits, cfg.logRateLimits)
	assert.Same(t, processClock, cfg.clock)
	assert.Equal(t, WaitStrategyPreferred, cfg.waitStrategy)
	assert.Zero(t, cfg.maxWait)
	assert.Equal(t, time.Second, cfg.rateWindow)
	assert.False(t, cfg.metrics)
}

func TestCustomOptions(t *testing.T) {
	clock := NewManualClock(0)
	rates := map[time.Duration]int{time.Second: 1}
	cfg, err := resolveLoopOptions([]LoopOption{
		WithClock(clock),
		WithWaitStrategy(WaitStrategyChannel),
		WithMaxWait(time.Millisecond),
		WithMetrics(true),
		WithRateWindow(time.Minute),
		WithLogRateLimits(rates),
		nil,
	})
	require.NoError(t, err)

	assert.Same(t, clock, cfg.clock)
	assert.Equal(t, WaitStrategyChannel, cfg.waitStrategy)
	assert.Equal(t, time.Millisecond, cfg.maxWait)
	assert.True(t, cfg.metrics)
	assert.Equal(t, time.Minute, cfg.rateWindow)
	assert.Equal(t, rates, cfg.logRateLimits)
}

func TestInvalidOptions(t *testing.T) {
	for name, opt := range map[string]LoopOption{
		"nil clock":        WithClock(nil),
		"negative wait":    WithMaxWait(-time.Second),
		"zero rate window": WithRateWindow(0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(opt)
			assert.Error(t, err)
		})
	}
}

func TestNew_WaitStrategies(t *testing.T) {
	for _, strategy := range append(allWaitStrategies(), WaitStrategyPreferred) {
		l, err := New(WithWaitStrategy(strategy))
		require.NoError(t, err, strategy.String())
		require.NoError(t, l.Close())
	}
}
