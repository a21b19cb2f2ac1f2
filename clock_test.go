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
)

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	assert.GreaterOrEqual(t, a, Time(0))
	assert.GreaterOrEqual(t, b-a, 2*time.Millisecond)
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(10)
	assert.Equal(t, Time(10), c.Now())
	c.Advance(5)
	assert.Equal(t, Time(15), c.Now())
	c.Advance(-100)
	c.Advance(0)
	assert.Equal(t, Time(15), c.Now())
}

func TestLoopsShareProcessClock(t *testing.T) {
	a := newTestLoop(t)
	b := newTestLoop(t)
	ta := a.CurrentTimeNoCache()
	tb := b.CurrentTimeNoCache()
	assert.GreaterOrEqual(t, tb, ta)
	assert.Less(t, tb-ta, time.Second)
}
