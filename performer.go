// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"context"
	"sync"
	"sync/atomic"
)

// Performer lets any goroutine run tasks on a RunLoop's goroutine.
//
// Tasks submitted through any number of Performers bound to the same loop,
// from any number of goroutines, share the loop's FIFO queue with DoLater.
// A Performer holds no ownership of its loop, closing one only stops it
// accepting work.
type Performer struct {
	loop *RunLoop
	// mu is held for reading across the closed check and the enqueue, so
	// nothing is accepted after Close returns
	mu     sync.RWMutex
	closed atomic.Bool
}

// NewPerformer returns an open Performer bound to loop.
func NewPerformer(loop *RunLoop) *Performer {
	if loop == nil {
		panic("runloop: nil loop")
	}
	return &Performer{loop: loop}
}

// Loop returns the bound RunLoop.
func (p *Performer) Loop() *RunLoop {
	return p.loop
}

// Perform submits task to the loop.
//
// When wait is true and the caller is the loop goroutine, task runs inline
// before Perform returns. When wait is true on any other goroutine, Perform
// blocks until the loop has run task, or until the loop discards it via
// Clear or Close. When wait is false, task is queued and Perform returns immediately.
//
// Tasks submitted after Close are dropped silently. A nil task is ignored.
func (p *Performer) Perform(task func(), wait bool) {
	if task == nil {
		return
	}

	p.mu.RLock()
	if p.closed.Load() {
		p.mu.RUnlock()
		return
	}

	l := p.loop

	if !wait {
		l.enqueue(pendingAction{fn: task})
		p.mu.RUnlock()
		return
	}

	if l.isLoopThread() {
		p.mu.RUnlock()
		_ = l.runInline(task)
		return
	}

	done := make(chan error, 1)
	l.enqueue(pendingAction{fn: task, done: done})
	p.mu.RUnlock()

	<-done
}

// PerformContext submits task and waits for it to complete, like
// Perform(task, true), but gives up once ctx is done.
//
// It returns ErrPerformerClosed if the performer is closed,
// ErrTaskDiscarded if the loop was cleared or closed before task ran, a
// *PanicError if task panicked, or ctx.Err(). A task abandoned via ctx may
// still run.
func (p *Performer) PerformContext(ctx context.Context, task func()) error {
	if task == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	if p.closed.Load() {
		p.mu.RUnlock()
		return ErrPerformerClosed
	}

	l := p.loop

	if l.isLoopThread() {
		p.mu.RUnlock()
		return l.runInline(task)
	}

	done := make(chan error, 1)
	l.enqueue(pendingAction{fn: task, done: done})
	p.mu.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the performer accepting tasks. Tasks accepted earlier still
// run. Close is idempotent.
func (p *Performer) Close() {
	p.mu.Lock()
	if p.closed.CompareAndSwap(false, true) {
		p.loop.log.debug(logCategoryPerform).Log("performer closed")
	}
	p.mu.Unlock()
}

// IsClosed reports whether Close has been called.
func (p *Performer) IsClosed() bool {
	return p.closed.Load()
}

// runInline executes task on the loop goroutine, outside the queue.
func (l *RunLoop) runInline(task func()) error {
	return l.runAction(pendingAction{fn: task})
}
