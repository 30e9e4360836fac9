// Package catqueue implements the FIFO of pending outbound CAT
// byte-strings. Producers (the control server, the periodic VFO poll) call
// Enqueue; the audio bridge is the sole consumer and calls Drain at the
// moments it knows the serial line is safe to write.
package catqueue

import "sync"

// Queue holds complete, ';'-terminated CAT command byte-strings.
//
// The lock here is only ever held to append or to swap the backing slice
// out, never to perform I/O, so it cannot deadlock against the serial
// port's own lock.
type Queue struct {
	mu      sync.Mutex
	pending [][]byte
}

func New() *Queue {
	return &Queue{}
}

// Enqueue appends a complete CAT command. cmd must already include its
// trailing ';'.
func (q *Queue) Enqueue(cmd []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()
}

// EnqueueString is a convenience wrapper around Enqueue for string literals.
func (q *Queue) EnqueueString(cmd string) {
	q.Enqueue([]byte(cmd))
}

// Drain atomically swaps out the pending commands and returns them in
// enqueue order. Returns nil if the queue was empty.
func (q *Queue) Drain() [][]byte {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()
	return drained
}

// Empty reports whether the queue currently has no pending commands. This
// is a point-in-time check only, used to skip a drain attempt on the hot
// path; it is not sufficient on its own for synchronization.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0
}
