// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// wakeFailureBackoff bounds waits while the wake primitive is failing.
const wakeFailureBackoff = 10 * time.Millisecond

var loopIDCounter atomic.Uint64

// RunLoop is a single-goroutine cooperative scheduler. Work (queued actions
// and timers) is executed only on the goroutine inside Run, one callback at a
// time, each to completion.
//
// A cycle consists of, in order: refreshing the cached time, running the
// actions queued so far (FIFO), firing every due timer in (fire time,
// scheduling order), invoking OnEveryCycle, then blocking until the next
// timer is due, the Run deadline passes, or the loop is woken.
//
// Scheduling, DoLater, Stop, and Clear are safe to call from any goroutine.
type RunLoop struct { // betteralign:ignore
	// OnEveryCycle, if non-nil, is invoked on the loop goroutine at the end
	// of every cycle. It must be set before Run, or from the loop goroutine.
	OnEveryCycle func()

	state fastState

	clock   Clock
	waker   waker
	metrics *loopMetrics
	log     loopLogger

	// pendingGen is incremented by Clear, aborting a drain in progress
	pending    actionQueue
	pendingGen uint64
	pendingMu  sync.Mutex

	// timerGen is incremented by Clear, timers popped before then are not
	// re-inserted
	timers   timerHeap
	timerSeq uint64
	timerGen uint64
	timersMu sync.Mutex

	// wakeMu guards the wake primitive against use after Close
	wakeMu      sync.RWMutex
	wakerClosed bool

	loopGoroutineID atomic.Uint64
	stopRequested   atomic.Bool
	closeRequested  atomic.Bool
	wakePending     atomic.Uint32 // wake-up deduplication

	maxWait time.Duration
	id      uint64

	// accessed only by the loop goroutine
	cycle     uint64
	cachedNow Time
	nowValid  bool
}

// New creates a RunLoop. The wake primitive is acquired immediately and is
// released by Close.
func New(opts ...LoopOption) (*RunLoop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	w, err := newWaker(cfg.waitStrategy)
	if err != nil {
		return nil, err
	}

	l := &RunLoop{
		clock:   cfg.clock,
		waker:   w,
		maxWait: cfg.maxWait,
		id:      loopIDCounter.Add(1),
	}
	l.log = newLoopLogger(cfg.logger, cfg.logRateLimits, l.id)
	if cfg.metrics {
		l.metrics = newLoopMetrics(cfg.rateWindow)
	}

	l.log.debug(logCategoryLifecycle).
		Str("wait_strategy", cfg.waitStrategy.String()).
		Log("loop created")

	return l, nil
}

// ID returns the process-unique id of the loop, as attached to its logs.
func (l *RunLoop) ID() uint64 {
	return l.id
}

// State returns the current state of the loop.
func (l *RunLoop) State() LoopState {
	return l.state.Load()
}

// Run executes cycles on the calling goroutine until Stop is observed or
// maxDuration elapses. A maxDuration <= 0 is unbounded, in which case Run
// blocks, sleeping while idle, until Stop is called.
//
// Run returns ErrReentrantRun when called from within the loop,
// ErrLoopAlreadyRunning if another goroutine is inside Run, and
// ErrLoopClosed after Close. The calling goroutine is locked to its OS
// thread for the duration.
func (l *RunLoop) Run(maxDuration time.Duration) error {
	return l.RunContext(context.Background(), maxDuration)
}

// RunContext is Run, additionally returning ctx.Err() once ctx is done.
func (l *RunLoop) RunContext(ctx context.Context, maxDuration time.Duration) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateIdle, StateRunning) {
		if l.state.Load() == StateClosed {
			return ErrLoopClosed
		}
		return ErrLoopAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.exitRun()

	// wake the loop on cancellation, it checks ctx before sleeping
	if done := ctx.Done(); done != nil {
		ctxDone := make(chan struct{})
		defer close(ctxDone)
		go func() {
			select {
			case <-done:
				l.wakeup()
			case <-ctxDone:
			}
		}()
	}

	return l.run(ctx, maxDuration)
}

func (l *RunLoop) run(ctx context.Context, maxDuration time.Duration) error {
	bounded := maxDuration > 0
	var deadline Time
	if bounded {
		deadline = l.clock.Now() + maxDuration
	}

	l.log.debug(logCategoryLifecycle).
		Dur("max_duration", maxDuration).
		Log("run started")

	var cycles uint64
	for {
		l.cycle++
		l.nowValid = false
		now := l.CurrentTime()

		if l.shouldStop(ctx) || (bounded && now >= deadline) {
			break
		}

		cycles++
		l.metrics.cycle()

		l.runPending()
		if l.shouldStop(ctx) {
			break
		}

		l.runTimers(ctx, now)
		if l.shouldStop(ctx) {
			break
		}

		if fn := l.OnEveryCycle; fn != nil {
			_ = l.safeExecute("cycle", fn)
			if l.shouldStop(ctx) {
				break
			}
		}

		l.sleep(ctx, bounded, deadline)
	}

	l.log.debug(logCategoryLifecycle).
		Uint64("cycles", cycles).
		Log("run stopped")

	return ctx.Err()
}

// exitRun resets per-run state, and completes a Close requested while the
// loop was running.
func (l *RunLoop) exitRun() {
	l.loopGoroutineID.Store(0)
	l.nowValid = false
	if !l.closeRequested.Load() {
		l.stopRequested.Store(false)
	}

	if l.closeRequested.Load() && l.state.TryTransition(StateRunning, StateClosed) {
		l.finalize()
		return
	}
	l.state.Store(StateIdle)
	// Close may have raced with the transition above
	if l.closeRequested.Load() && l.state.TryTransition(StateIdle, StateClosed) {
		l.finalize()
	}
}

func (l *RunLoop) shouldStop(ctx context.Context) bool {
	return l.stopRequested.Load() || ctx.Err() != nil
}

// runPending executes the actions queued before it was called. Actions
// queued by those actions run on the next cycle.
func (l *RunLoop) runPending() {
	l.pendingMu.Lock()
	n := l.pending.Length()
	gen := l.pendingGen
	l.pendingMu.Unlock()

	for ; n > 0; n-- {
		if l.stopRequested.Load() {
			return
		}
		l.pendingMu.Lock()
		if l.pendingGen != gen {
			l.pendingMu.Unlock()
			return
		}
		a, ok := l.pending.Pop()
		l.pendingMu.Unlock()
		if !ok {
			return
		}
		_ = l.runAction(a)
	}
}

func (l *RunLoop) runAction(a pendingAction) error {
	var start time.Time
	if l.metrics != nil {
		start = time.Now()
	}
	err := l.safeExecute("action", a.fn)
	a.finish(err)
	if l.metrics != nil {
		l.metrics.action(l.CurrentTime(), time.Since(start))
	}
	return err
}

// runTimers fires every timer due at now, in (next, seq) order. A recurring
// timer is rescheduled before the next pop, so a catch-up timer that is
// still behind fires again in the same pass, interleaved with the others.
// A timer re-armed into the past from its own action is held back until
// the next cycle.
func (l *RunLoop) runTimers(ctx context.Context, now Time) {
	var deferred []*Timer

	l.timersMu.Lock()
	gen := l.timerGen
	l.timersMu.Unlock()

	for !l.shouldStop(ctx) {
		l.timersMu.Lock()
		if len(l.timers) == 0 || l.timers[0].next > now {
			l.timersMu.Unlock()
			break
		}
		t := heap.Pop(&l.timers).(*Timer)
		if t.canceled.Load() {
			l.timersMu.Unlock()
			continue
		}
		if t.cycle == l.cycle {
			deferred = append(deferred, t)
			l.timersMu.Unlock()
			continue
		}
		target := t.next
		t.firing = true
		t.rearmed = false
		l.timersMu.Unlock()

		l.fireTimer(t, target)

		l.timersMu.Lock()
		t.firing = false
		if t.rearmed {
			t.cycle = l.cycle
		}
		switch {
		case l.timerGen != gen:
			t.canceled.Store(true)
		case t.canceled.Load() || t.rearmed || t.interval <= 0:
		default:
			t.next = t.recur(target, now)
			t.seq = l.nextTimerSeqLocked()
			heap.Push(&l.timers, t)
		}
		l.timersMu.Unlock()
	}

	if len(deferred) == 0 {
		return
	}
	l.timersMu.Lock()
	for _, t := range deferred {
		switch {
		case l.timerGen != gen:
			t.canceled.Store(true)
		case t.canceled.Load() || t.index >= 0:
			// canceled, or already re-inserted by SetNextFireTime
		default:
			heap.Push(&l.timers, t)
		}
	}
	l.timersMu.Unlock()
}

func (l *RunLoop) fireTimer(t *Timer, target Time) {
	var start time.Time
	if l.metrics != nil {
		start = time.Now()
	}
	_ = l.safeExecute("timer", func() { t.fire(target) })
	if l.metrics != nil {
		l.metrics.timer(time.Since(start))
	}
}

// safeExecute runs fn, recovering and logging any panic.
func (l *RunLoop) safeExecute(kind string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.panicked(kind, r)
			l.metrics.panicked()
			err = &PanicError{Value: r}
		}
	}()
	fn()
	return nil
}

// sleep blocks until there may be work. Producers read StateSleeping to
// decide whether to wake, so the state is published before the final checks.
func (l *RunLoop) sleep(ctx context.Context, bounded bool, deadline Time) {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	if timeout := l.waitTimeout(ctx, bounded, deadline); timeout != 0 {
		if err := l.waker.wait(timeout); err != nil {
			l.log.wakeFailed(err)
			if timeout < 0 || timeout > wakeFailureBackoff {
				timeout = wakeFailureBackoff
			}
			time.Sleep(timeout)
		}
	}

	l.wakePending.Store(0)
	l.state.TryTransition(StateSleeping, StateRunning)
}

// waitTimeout returns how long the loop may block, negative for
// indefinitely, zero if there is work ready now.
func (l *RunLoop) waitTimeout(ctx context.Context, bounded bool, deadline Time) time.Duration {
	if l.shouldStop(ctx) {
		return 0
	}

	l.pendingMu.Lock()
	n := l.pending.Length()
	l.pendingMu.Unlock()
	if n != 0 {
		return 0
	}

	now := l.clock.Now()
	timeout := time.Duration(-1)

	l.timersMu.Lock()
	if len(l.timers) != 0 {
		timeout = max(l.timers[0].next-now, 0)
	}
	l.timersMu.Unlock()

	if bounded {
		remaining := max(deadline-now, 0)
		if timeout < 0 || remaining < timeout {
			timeout = remaining
		}
	}

	if l.maxWait > 0 && (timeout < 0 || timeout > l.maxWait) {
		timeout = l.maxWait
	}

	return timeout
}

// wakeup interrupts a sleeping loop. It is a no-op unless the loop is
// sleeping, and concurrent callers coalesce to a single write.
func (l *RunLoop) wakeup() {
	if l.state.Load() != StateSleeping {
		return
	}
	if !l.wakePending.CompareAndSwap(0, 1) {
		return
	}

	l.wakeMu.RLock()
	var err error
	if !l.wakerClosed {
		err = l.waker.wake()
	}
	l.wakeMu.RUnlock()

	if err != nil {
		l.wakePending.Store(0)
		l.log.wakeFailed(err)
	}
}

// timersChanged wakes the loop so it can recompute its wait, unless called
// from the loop itself.
func (l *RunLoop) timersChanged() {
	if !l.isLoopThread() {
		l.wakeup()
	}
}

// Stop requests that Run return. Callbacks already executing complete, but
// no further callback is started. Stop from a foreign goroutine wakes a
// sleeping loop. If the loop is not running, the next Run returns
// immediately.
func (l *RunLoop) Stop() {
	l.stopRequested.Store(true)
	l.wakeup()
}

// Schedule creates a timer first firing at the absolute time at. A positive
// recurInterval makes it recurring, see Timer for the catch-up policy. The
// timer has no action until SetAction is called, prefer ScheduleFunc when
// scheduling from a foreign goroutine.
func (l *RunLoop) Schedule(at Time, recurInterval Time, catchUp bool) *Timer {
	return l.ScheduleFunc(at, recurInterval, catchUp, nil)
}

// ScheduleRel is Schedule relative to CurrentTime.
func (l *RunLoop) ScheduleRel(delta Time, recurInterval Time, catchUp bool) *Timer {
	return l.ScheduleFunc(l.CurrentTime()+delta, recurInterval, catchUp, nil)
}

// ScheduleFunc is Schedule with the action set before the timer is
// inserted.
func (l *RunLoop) ScheduleFunc(at Time, recurInterval Time, catchUp bool, action func(Time)) *Timer {
	t := &Timer{
		loop:     l,
		next:     at,
		interval: max(recurInterval, 0),
		catchUp:  catchUp,
		index:    -1,
	}
	t.SetAction(action)

	l.timersMu.Lock()
	t.seq = l.nextTimerSeqLocked()
	heap.Push(&l.timers, t)
	l.timersMu.Unlock()

	l.timersChanged()
	return t
}

// ScheduleRelFunc is ScheduleFunc relative to CurrentTime.
func (l *RunLoop) ScheduleRelFunc(delta Time, recurInterval Time, catchUp bool, action func(Time)) *Timer {
	return l.ScheduleFunc(l.CurrentTime()+delta, recurInterval, catchUp, action)
}

func (l *RunLoop) nextTimerSeqLocked() uint64 {
	l.timerSeq++
	return l.timerSeq
}

// DoLater queues action to run on the loop goroutine, in FIFO order with all
// other queued actions. A nil action is ignored.
func (l *RunLoop) DoLater(action func()) {
	if action == nil {
		return
	}
	l.enqueue(pendingAction{fn: action})
}

// enqueue appends a to the pending queue. Actions submitted to a closed
// loop are discarded immediately, releasing any waiter.
func (l *RunLoop) enqueue(a pendingAction) {
	l.pendingMu.Lock()
	if l.state.Load() == StateClosed {
		l.pendingMu.Unlock()
		a.finish(ErrTaskDiscarded)
		l.metrics.discarded(1)
		return
	}
	l.pending.Push(a)
	l.pendingMu.Unlock()
	l.wakeup()
}

// Clear cancels every timer and discards every queued action without
// running it. Goroutines blocked in a synchronous perform of a discarded
// action are released.
func (l *RunLoop) Clear() {
	l.timersMu.Lock()
	l.timerGen++
	timers := len(l.timers)
	for i, t := range l.timers {
		t.canceled.Store(true)
		t.index = -1
		l.timers[i] = nil
	}
	l.timers = l.timers[:0]
	l.timersMu.Unlock()

	l.pendingMu.Lock()
	l.pendingGen++
	discarded := l.pending.DrainAll()
	l.pendingMu.Unlock()

	for i := range discarded {
		discarded[i].finish(ErrTaskDiscarded)
	}
	l.metrics.discarded(len(discarded))

	l.log.debug(logCategoryLifecycle).
		Int("timers", timers).
		Int("actions", len(discarded)).
		Log("loop cleared")
}

// CurrentTime returns the loop's notion of now. On the loop goroutine the
// value is cached for the duration of a cycle, elsewhere it reads the clock.
func (l *RunLoop) CurrentTime() Time {
	if !l.isLoopThread() {
		return l.clock.Now()
	}
	if !l.nowValid {
		l.cachedNow = l.clock.Now()
		l.nowValid = true
	}
	return l.cachedNow
}

// CurrentTimeNoCache reads the clock.
func (l *RunLoop) CurrentTimeNoCache() Time {
	return l.clock.Now()
}

// IsRunningInThisThread reports whether the caller is the goroutine inside
// Run.
func (l *RunLoop) IsRunningInThisThread() bool {
	return l.isLoopThread()
}

func (l *RunLoop) isLoopThread() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// Metrics returns a snapshot of the loop's statistics.
func (l *RunLoop) Metrics() MetricsSnapshot {
	s := l.metrics.snapshot(l.clock.Now())

	l.pendingMu.Lock()
	s.PendingActions = l.pending.Length()
	l.pendingMu.Unlock()

	l.timersMu.Lock()
	s.Timers = len(l.timers)
	l.timersMu.Unlock()

	return s
}

// Close clears the loop and releases its wake primitive. A running loop is
// stopped, and closed once Run returns. Close returns ErrLoopClosed if the
// loop was already closed.
func (l *RunLoop) Close() error {
	if l.state.Load() == StateClosed || !l.closeRequested.CompareAndSwap(false, true) {
		return ErrLoopClosed
	}
	if l.state.TryTransition(StateIdle, StateClosed) {
		return l.finalize()
	}
	if l.state.IsRunning() {
		l.log.debug(logCategoryLifecycle).Log("close deferred until run returns")
	}
	l.Stop()
	return nil
}

func (l *RunLoop) finalize() error {
	l.Clear()

	l.wakeMu.Lock()
	l.wakerClosed = true
	err := l.waker.close()
	l.wakeMu.Unlock()

	l.log.debug(logCategoryLifecycle).Log("loop closed")
	return err
}

func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
