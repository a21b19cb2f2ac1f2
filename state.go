// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync/atomic"
)

// LoopState represents the current state of a RunLoop.
//
// State Machine:
//
//	StateIdle (0) → StateRunning (1)      [Run()]
//	StateRunning (1) → StateSleeping (2)  [wait via CAS]
//	StateSleeping (2) → StateRunning (1)  [woken via CAS]
//	StateRunning (1) → StateIdle (0)      [Run() returns]
//	StateIdle (0) → StateClosed (3)       [Close()]
//	StateClosed (3) → (terminal)
//
// Only the goroutine inside Run moves between Running and Sleeping. Other
// goroutines read the state to decide whether a wake-up is required.
type LoopState uint32

const (
	// StateIdle indicates the loop exists but no goroutine is inside Run.
	StateIdle LoopState = iota
	// StateRunning indicates the loop is executing a cycle.
	StateRunning
	// StateSleeping indicates the loop is blocked waiting for a deadline or wake-up.
	StateSleeping
	// StateClosed indicates the wake primitive has been released.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state cell with cache-line padding.
type fastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte //nolint:unused
	v atomic.Uint32
	_ [sizeOfCacheLine - sizeOfAtomicUint32]byte //nolint:unused
}

func (s *fastState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *fastState) Store(state LoopState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *fastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// IsRunning returns true if a goroutine is inside Run.
func (s *fastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}

// These constants are verified via unit tests.
const (
	// sizeOfCacheLine is 128 to satisfy both x86-64 (64) and Apple Silicon (128).
	sizeOfCacheLine = 128

	sizeOfAtomicUint32 = 4
)
