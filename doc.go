// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package runloop provides a single-goroutine cooperative scheduler with
// monotonic timers, and a goroutine-safe way to inject work onto it.
//
// # Architecture
//
// A [RunLoop] owns a min-heap of [Timer] values and a FIFO queue of pending
// actions. Work only ever executes on the goroutine inside [RunLoop.Run],
// one callback at a time. A [Performer] is a closable handle other
// goroutines use to submit tasks to a loop, optionally blocking until the
// task has run.
//
// Each cycle of the loop:
//  1. Refreshes the cached time ([RunLoop.CurrentTime])
//  2. Runs the actions queued so far ([RunLoop.DoLater], [Performer.Perform])
//  3. Fires every due timer, earliest first, ties in scheduling order
//  4. Invokes [RunLoop.OnEveryCycle]
//  5. Blocks until the next timer is due or it is woken
//
// # Timers
//
// Timers are one-shot or recurring. A recurring timer with catch-up enabled
// keeps a fixed phase: if the loop stalls for several intervals, the timer
// fires once per elapsed interval within the same cycle, interleaved in
// fire-time order with the other due timers, until it is back in the future. Without catch-up, the next firing is one interval after the
// cycle that fired it. The action receives the target fire time.
//
// # Waiting
//
// The blocking primitive is selected with [WithWaitStrategy]. On Linux and
// Darwin the default blocks in poll(2) on an eventfd or self-pipe, other
// platforms use a channel. Use a [Factory] to fix the choice once for a
// process.
//
// # Thread Safety
//
//   - [RunLoop.DoLater], [RunLoop.Stop], [RunLoop.Clear], scheduling, and
//     all [Timer] methods are safe to call from any goroutine
//   - [Performer] methods are safe to call from any goroutine
//   - [RunLoop.OnEveryCycle] must be set before Run or from the loop
//     goroutine
//
// Two loops performing synchronously on each other can deadlock.
//
// # Usage
//
//	loop, err := runloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	loop.ScheduleRelFunc(100*time.Millisecond, 0, false, func(runloop.Time) {
//	    loop.Stop()
//	})
//
//	if err := loop.Run(0); err != nil {
//	    log.Fatal(err)
//	}
package runloop
