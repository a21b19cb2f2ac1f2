// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Log categories, attached to every entry as the "category" field.
const (
	logCategoryLifecycle = "lifecycle"
	logCategoryPanic     = "panic"
	logCategoryWake      = "wake"
	logCategoryTimer     = "timer"
	logCategoryPerform   = "perform"
)

// defaultLogRateLimits bounds how often a single category of warning may be
// emitted per loop, a panicking interval timer would otherwise flood the log.
var defaultLogRateLimits = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// loopLogger decorates a logiface logger with the loop id and a per-category
// rate limit for the noisy paths. The zero value logs nothing.
type loopLogger struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	loopID  uint64
}

func newLoopLogger(logger *logiface.Logger[logiface.Event], rates map[time.Duration]int, loopID uint64) loopLogger {
	x := loopLogger{logger: logger, loopID: loopID}
	if logger != nil && len(rates) != 0 {
		x.limiter = catrate.NewLimiter(rates)
	}
	return x
}

// build starts an entry, nil if the level is disabled. logiface builders are
// nil-safe, so callers may chain unconditionally.
func (x loopLogger) build(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	return x.logger.Build(level).
		Uint64("loop", x.loopID).
		Str("category", category)
}

// limited is build, subject to the category rate limit.
func (x loopLogger) limited(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	b := x.logger.Build(level)
	if b == nil {
		return nil
	}
	if x.limiter != nil {
		if _, ok := x.limiter.Allow(category); !ok {
			b.Release()
			return nil
		}
	}
	return b.Uint64("loop", x.loopID).Str("category", category)
}

func (x loopLogger) debug(category string) *logiface.Builder[logiface.Event] {
	return x.build(logiface.LevelDebug, category)
}

func (x loopLogger) panicked(kind string, value any) {
	x.limited(logiface.LevelError, logCategoryPanic).
		Str("kind", kind).
		Any("panic", value).
		Log("recovered panic in callback")
}

func (x loopLogger) wakeFailed(err error) {
	x.limited(logiface.LevelWarning, logCategoryWake).
		Err(err).
		Log("wake primitive failed")
}
