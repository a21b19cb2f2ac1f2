// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicError(t *testing.T) {
	err := &PanicError{Value: "boom"}
	assert.Equal(t, "runloop: task panicked: boom", err.Error())
	assert.Nil(t, err.Unwrap())

	wrapped := fmt.Errorf("perform: %w", &PanicError{Value: io.EOF})
	assert.ErrorIs(t, wrapped, io.EOF)
	var pe *PanicError
	assert.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, io.EOF, pe.Value)
}

func TestSentinelErrorsDistinct(t *testing.T) {
	all := []error{
		ErrLoopAlreadyRunning,
		ErrReentrantRun,
		ErrLoopClosed,
		ErrPerformerClosed,
		ErrTaskDiscarded,
		ErrWaitStrategyUnsupported,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
