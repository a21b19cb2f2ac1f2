// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for RunLoop creation.
type loopOptions struct {
	logger        *logiface.Logger[logiface.Event]
	logRateLimits map[time.Duration]int
	clock         Clock
	waitStrategy  WaitStrategy
	maxWait       time.Duration
	rateWindow    time.Duration
	metrics       bool
}

// LoopOption configures a RunLoop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLogRateLimits overrides the per-category rate limits applied to
// repeated warnings (recovered panics, wake failures). See
// catrate.NewLimiter for the format. An empty map disables limiting.
func WithLogRateLimits(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logRateLimits = rates
		return nil
	}}
}

// WithClock sets the time source. Loops sharing a clock produce comparable
// Time values. Defaults to a process-wide monotonic clock.
func WithClock(clock Clock) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if clock == nil {
			return errors.New("runloop: clock must not be nil")
		}
		opts.clock = clock
		return nil
	}}
}

// WithWaitStrategy selects the blocking primitive, see WaitStrategy.
func WithWaitStrategy(strategy WaitStrategy) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.waitStrategy = strategy
		return nil
	}}
}

// WithMaxWait caps a single blocking wait. Zero (the default) means waits
// are bounded only by timers, the Run deadline, and wake-ups.
func WithMaxWait(d time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d < 0 {
			return errors.New("runloop: max wait must not be negative")
		}
		opts.maxWait = d
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see RunLoop.Metrics.
// This adds a clock read around every callback.
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// WithRateWindow sets the window of the action throughput tracker used by
// metrics. Defaults to one second.
func WithRateWindow(window time.Duration) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if window <= 0 {
			return errors.New("runloop: rate window must be positive")
		}
		opts.rateWindow = window
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		logRateLimits: defaultLogRateLimits,
		clock:         processClock,
		waitStrategy:  WaitStrategyPreferred,
		rateWindow:    time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
