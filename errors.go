// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called while another
	// goroutine is running the loop.
	ErrLoopAlreadyRunning = errors.New("runloop: loop is already running")

	// ErrReentrantRun is returned when Run is called from within the loop itself.
	ErrReentrantRun = errors.New("runloop: cannot call Run from within the loop")

	// ErrLoopClosed is returned when Run or Close is called on a closed loop.
	ErrLoopClosed = errors.New("runloop: loop has been closed")

	// ErrPerformerClosed is returned by PerformContext once the performer is closed.
	ErrPerformerClosed = errors.New("runloop: performer is closed")

	// ErrTaskDiscarded is returned by PerformContext when the task was
	// discarded by Clear or Close before it could run.
	ErrTaskDiscarded = errors.New("runloop: task discarded before it ran")
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("runloop: task panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, enabling [errors.Is] and
// [errors.As] through the cause chain.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
