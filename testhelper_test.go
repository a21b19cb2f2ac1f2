// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// allWaitStrategies lists the strategies supported on this platform.
func allWaitStrategies() []WaitStrategy {
	if PreferredWaitStrategy() == WaitStrategyFD {
		return []WaitStrategy{WaitStrategyFD, WaitStrategyChannel}
	}
	return []WaitStrategy{WaitStrategyChannel}
}

func newTestLoop(t *testing.T, opts ...LoopOption) *RunLoop {
	t.Helper()
	l, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// startLoop runs l on a new goroutine, until Stop. The returned channel
// receives the result of Run. A cleanup stops the loop and waits for it.
func startLoop(t *testing.T, l *RunLoop) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	running := make(chan struct{})
	go func() {
		l.DoLater(func() { close(running) })
		result <- l.Run(0)
	}()
	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not start")
	}
	t.Cleanup(func() {
		l.Stop()
		select {
		case <-result:
		case <-time.After(5 * time.Second):
			t.Error("loop did not stop")
		}
	})
	return result
}

// stopAfterCycles stops l at the end of cycle n.
func stopAfterCycles(l *RunLoop, n int) *int {
	var cycles int
	l.OnEveryCycle = func() {
		cycles++
		if cycles >= n {
			l.Stop()
		}
	}
	return &cycles
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}
