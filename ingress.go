// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"sync"
)

// chunkSize is the number of actions per node in the actionQueue linked list.
const chunkSize = 128

// pendingAction is one unit of queued work.
//
// A nil done marks a plain deferred action (DoLater or asynchronous
// Perform). A non-nil done marks a synchronous Perform: exactly one value is
// sent on it once the action has run, panicked, or been discarded. done is
// buffered so the loop never blocks on an abandoned waiter.
type pendingAction struct {
	fn   func()
	done chan error
}

// finish reports the outcome of a synchronous action to its waiter.
func (a *pendingAction) finish(err error) {
	if a.done != nil {
		a.done <- err
	}
}

// actionQueue is a chunked linked-list FIFO.
//
// Thread Safety: NOT thread-safe, the RunLoop guards it with pendingMu.
type actionQueue struct { // betteralign:ignore
	head   *chunk
	tail   *chunk
	length int
}

// chunkPool prevents GC thrashing under high load.
var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk is a fixed-size node, readPos/pos give O(1) push/pop without shifting.
type chunk struct {
	actions [chunkSize]pendingAction
	next    *chunk
	readPos int
	pos     int
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk clears retained closures before pooling the chunk.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.actions[i] = pendingAction{}
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

// Push appends an action.
func (q *actionQueue) Push(a pendingAction) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.actions) {
		newTail := newChunk()
		q.tail.next = newTail
		q.tail = newTail
	}

	q.tail.actions[q.tail.pos] = a
	q.tail.pos++
	q.length++
}

// Pop removes and returns the oldest action, false if the queue is empty.
func (q *actionQueue) Pop() (pendingAction, bool) {
	if q.head == nil {
		return pendingAction{}, false
	}

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return pendingAction{}, false
		}
		oldHead := q.head
		q.head = q.head.next
		returnChunk(oldHead)
	}

	a := q.head.actions[q.head.readPos]
	q.head.actions[q.head.readPos] = pendingAction{}
	q.head.readPos++
	q.length--

	// release the final chunk eagerly once drained
	if q.head.readPos >= q.head.pos && q.head == q.tail {
		returnChunk(q.head)
		q.head = nil
		q.tail = nil
	}

	return a, true
}

// Length returns the number of queued actions.
func (q *actionQueue) Length() int {
	return q.length
}

// DrainAll empties the queue, returning the removed actions in FIFO order.
func (q *actionQueue) DrainAll() []pendingAction {
	if q.length == 0 {
		return nil
	}
	out := make([]pendingAction, 0, q.length)
	for {
		a, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, a)
	}
}
