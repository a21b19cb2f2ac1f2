// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"container/heap"
	"sync/atomic"
)

// Timer is a cancellable, optionally recurring unit of deferred work, owned
// by the RunLoop that created it. Timers are created by RunLoop.Schedule and
// RunLoop.ScheduleRel, and are compared by identity.
//
// All methods are safe to call from any goroutine, including from within the
// timer's own action.
type Timer struct {
	loop     *RunLoop
	action   atomic.Pointer[func(Time)]
	canceled atomic.Bool

	// the remaining fields are guarded by loop.timersMu

	next     Time
	interval Time
	seq      uint64
	cycle    uint64 // loop cycle of the last re-arm from its own action
	index    int    // heap index, -1 when not in the heap
	catchUp  bool
	firing   bool // action is executing
	rearmed  bool // SetNextFireTime was called while firing
}

// SetAction sets the callback, invoked on the loop goroutine with the
// target fire time of each firing. A nil action makes firings no-ops.
func (t *Timer) SetAction(action func(Time)) *Timer {
	if action == nil {
		t.action.Store(nil)
	} else {
		t.action.Store(&action)
	}
	return t
}

// Cancel stops all future firings, including a recurrence that would be
// scheduled after the currently executing action. Cancel is irreversible and
// idempotent.
func (t *Timer) Cancel() {
	if !t.canceled.CompareAndSwap(false, true) {
		return
	}
	l := t.loop
	l.timersMu.Lock()
	if t.index >= 0 {
		heap.Remove(&l.timers, t.index)
	}
	seq := t.seq
	l.timersMu.Unlock()
	l.log.debug(logCategoryTimer).Uint64("seq", seq).Log("timer canceled")
}

// IsCanceled reports whether Cancel has been called.
func (t *Timer) IsCanceled() bool {
	return t.canceled.Load()
}

// SetNextFireTime reschedules the next firing to at. Called from within the
// timer's own action it re-arms the timer, replacing the automatic
// recurrence for that firing. It has no effect on a canceled timer.
func (t *Timer) SetNextFireTime(at Time) {
	if t.canceled.Load() {
		return
	}
	l := t.loop
	l.timersMu.Lock()
	if t.canceled.Load() {
		l.timersMu.Unlock()
		return
	}
	t.next = at
	t.seq = l.nextTimerSeqLocked()
	if t.firing {
		t.rearmed = true
	}
	if t.index >= 0 {
		heap.Fix(&l.timers, t.index)
	} else {
		heap.Push(&l.timers, t)
	}
	l.timersMu.Unlock()
	l.timersChanged()
}

// SetRecurInterval changes the recurrence interval used to compute the next
// firing. Zero or negative makes the timer one-shot.
func (t *Timer) SetRecurInterval(interval Time) {
	l := t.loop
	l.timersMu.Lock()
	t.interval = max(interval, 0)
	l.timersMu.Unlock()
}

// NextFireTime returns the scheduled (or most recent) fire time.
func (t *Timer) NextFireTime() Time {
	l := t.loop
	l.timersMu.Lock()
	defer l.timersMu.Unlock()
	return t.next
}

// RecurInterval returns the recurrence interval, zero for one-shot timers.
func (t *Timer) RecurInterval() Time {
	l := t.loop
	l.timersMu.Lock()
	defer l.timersMu.Unlock()
	return t.interval
}

// CatchUp returns the catch-up policy the timer was scheduled with.
func (t *Timer) CatchUp() bool {
	return t.catchUp
}

// Loop returns the owning RunLoop.
func (t *Timer) Loop() *RunLoop {
	return t.loop
}

func (t *Timer) fire(target Time) {
	// Cancel or Clear from another goroutine may land after the pop
	if t.canceled.Load() {
		return
	}
	if fn := t.action.Load(); fn != nil {
		(*fn)(target)
	}
}

// recur computes the next fire time after a firing with the given target,
// observed at now. Caller must hold loop.timersMu.
func (t *Timer) recur(target, now Time) Time {
	if t.catchUp {
		// fixed phase, a stalled loop fires once per elapsed interval
		return target + t.interval
	}
	return now + t.interval
}

// timerHeap is a min-heap ordered by fire time, then scheduling order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].next != h[j].next {
		return h[i].next < h[j].next
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
