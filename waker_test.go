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

func TestWaker(t *testing.T) {
	for _, strategy := range allWaitStrategies() {
		t.Run(strategy.String(), func(t *testing.T) {
			t.Run("timeout elapses", func(t *testing.T) {
				w, err := newWaker(strategy)
				require.NoError(t, err)
				defer w.close()

				start := time.Now()
				require.NoError(t, w.wait(10*time.Millisecond))
				assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
			})

			t.Run("wake before wait", func(t *testing.T) {
				w, err := newWaker(strategy)
				require.NoError(t, err)
				defer w.close()

				// repeated wakes coalesce
				for range 3 {
					require.NoError(t, w.wake())
				}
				start := time.Now()
				require.NoError(t, w.wait(-1))
				assert.Less(t, time.Since(start), time.Second)

				// drained, so the next wait times out
				start = time.Now()
				require.NoError(t, w.wait(5*time.Millisecond))
				assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
			})

			t.Run("wake during wait", func(t *testing.T) {
				w, err := newWaker(strategy)
				require.NoError(t, err)
				defer w.close()

				go func() {
					time.Sleep(5 * time.Millisecond)
					_ = w.wake()
				}()
				done := make(chan error, 1)
				go func() { done <- w.wait(-1) }()
				select {
				case err := <-done:
					require.NoError(t, err)
				case <-time.After(5 * time.Second):
					t.Fatal("wait was not woken")
				}
			})

			t.Run("zero timeout", func(t *testing.T) {
				w, err := newWaker(strategy)
				require.NoError(t, err)
				defer w.close()

				start := time.Now()
				require.NoError(t, w.wait(0))
				assert.Less(t, time.Since(start), time.Second)
			})
		})
	}
}

func TestNewWaker_Unsupported(t *testing.T) {
	_, err := newWaker(WaitStrategy(42))
	assert.ErrorIs(t, err, ErrWaitStrategyUnsupported)
	if PreferredWaitStrategy() != WaitStrategyFD {
		_, err = newWaker(WaitStrategyFD)
		assert.ErrorIs(t, err, ErrWaitStrategyUnsupported)
	}
}

func TestWaitStrategy_String(t *testing.T) {
	assert.Equal(t, "Preferred", WaitStrategyPreferred.String())
	assert.Equal(t, "FD", WaitStrategyFD.String())
	assert.Equal(t, "Channel", WaitStrategyChannel.String())
	assert.Equal(t, "WaitStrategy(9)", WaitStrategy(9).String())
}

func TestPollTimeoutMillis(t *testing.T) {
	for _, tc := range []struct {
		in   time.Duration
		want int
	}{
		{-1, -1},
		{-time.Hour, -1},
		{0, 0},
		{1, 1},
		{time.Millisecond, 1},
		{time.Millisecond + 1, 2},
		{1500 * time.Microsecond, 2},
		{time.Second, 1000},
		{1 << 62, 1<<31 - 1},
	} {
		assert.Equal(t, tc.want, pollTimeoutMillis(tc.in), "%v", tc.in)
	}
}
