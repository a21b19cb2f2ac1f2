// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"fmt"
	"time"
)

// WaitStrategy selects the primitive a RunLoop blocks on between cycles.
type WaitStrategy int

const (
	// WaitStrategyPreferred resolves to PreferredWaitStrategy at construction.
	WaitStrategyPreferred WaitStrategy = iota
	// WaitStrategyFD blocks in poll(2) on an eventfd (Linux) or self-pipe (Darwin).
	WaitStrategyFD
	// WaitStrategyChannel blocks on a buffered channel and a time.Timer.
	WaitStrategyChannel
)

// ErrWaitStrategyUnsupported is returned when the requested wait strategy is
// not available on this platform.
var ErrWaitStrategyUnsupported = errors.New("runloop: wait strategy not supported on this platform")

// String returns a human-readable representation of the strategy.
func (s WaitStrategy) String() string {
	switch s {
	case WaitStrategyPreferred:
		return "Preferred"
	case WaitStrategyFD:
		return "FD"
	case WaitStrategyChannel:
		return "Channel"
	default:
		return fmt.Sprintf("WaitStrategy(%d)", int(s))
	}
}

// PreferredWaitStrategy returns the strategy used when none is configured.
func PreferredWaitStrategy() WaitStrategy {
	return preferredWaitStrategy
}

// waker is the blocking wait/wake primitive of a loop.
//
// wait is only ever called by the goroutine inside Run; wake may be called
// from any goroutine, any number of times, and must cause the current or the
// next wait to return promptly.
type waker interface {
	// wait blocks until woken or until timeout elapses. A negative timeout
	// blocks until woken.
	wait(timeout time.Duration) error
	wake() error
	close() error
}

func newWaker(strategy WaitStrategy) (waker, error) {
	if strategy == WaitStrategyPreferred {
		strategy = preferredWaitStrategy
	}
	switch strategy {
	case WaitStrategyFD:
		return newFDWaker()
	case WaitStrategyChannel:
		return newChanWaker(), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrWaitStrategyUnsupported, strategy)
	}
}

// chanWaker is the portable waker. The channel holds at most one pending
// signal, so repeated wakes coalesce.
type chanWaker struct {
	ch    chan struct{}
	timer *time.Timer
}

func newChanWaker() *chanWaker {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &chanWaker{
		ch:    make(chan struct{}, 1),
		timer: t,
	}
}

func (w *chanWaker) wait(timeout time.Duration) error {
	if timeout == 0 {
		select {
		case <-w.ch:
		default:
		}
		return nil
	}
	if timeout < 0 {
		<-w.ch
		return nil
	}
	w.timer.Reset(timeout)
	select {
	case <-w.ch:
		w.timer.Stop()
	case <-w.timer.C:
	}
	return nil
}

func (w *chanWaker) wake() error {
	select {
	case w.ch <- struct{}{}:
	default:
	}
	return nil
}

func (w *chanWaker) close() error {
	w.timer.Stop()
	return nil
}

// pollTimeoutMillis converts a wait timeout to poll(2) milliseconds, rounding
// up so sub-millisecond waits don't spin.
func pollTimeoutMillis(timeout time.Duration) int {
	const maxMillis = 1<<31 - 1
	switch {
	case timeout < 0:
		return -1
	case timeout >= maxMillis*time.Millisecond:
		return maxMillis
	default:
		return int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
}
