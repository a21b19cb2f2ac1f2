// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package runloop

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const preferredWaitStrategy = WaitStrategyFD

// fdWaker blocks in poll(2) on the read end of a wake fd. On Linux both ends
// are the same eventfd.
type fdWaker struct {
	readFD  int
	writeFD int
	buf     [8]byte
}

func newFDWaker() (waker, error) {
	r, w, err := openWakeFDs()
	if err != nil {
		return nil, err
	}
	return &fdWaker{readFD: r, writeFD: w}, nil
}

func (w *fdWaker) wait(timeout time.Duration) error {
	fds := [1]unix.PollFd{{Fd: int32(w.readFD), Events: unix.POLLIN}}
	n, err := unix.Poll(fds[:], pollTimeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			// treated as a spurious wake-up, the caller re-evaluates
			return nil
		}
		return err
	}
	if n > 0 {
		w.drain()
	}
	return nil
}

func (w *fdWaker) drain() {
	for {
		if _, err := unix.Read(w.readFD, w.buf[:]); err != nil {
			return
		}
	}
}

func (w *fdWaker) wake() error {
	// native endianness, eventfd only cares that the counter is non-zero
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(w.writeFD, buf)
	if errors.Is(err, unix.EAGAIN) {
		// counter or pipe is full, a wake-up is already pending
		return nil
	}
	return err
}

func (w *fdWaker) close() error {
	err := unix.Close(w.readFD)
	if w.writeFD != w.readFD {
		if err2 := unix.Close(w.writeFD); err == nil {
			err = err2
		}
	}
	return err
}
