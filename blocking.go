// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rwq

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// semaphoreSpin is the number of spin iterations before the consumer
// parks on the wake channel.
const semaphoreSpin = 1024

// semaphore is a lightweight counting semaphore for the SPSC pairing.
//
// The count is the source of truth; the wake channel only carries
// wake-up hints. A parked consumer rechecks the count after every
// token, so a stale or missing token can never strand an element.
// Single waiter by construction, so one buffered token suffices.
type semaphore struct {
	_     pad
	count atomix.Int64
	_     pad
	wake  chan struct{}
}

func newSemaphore() *semaphore {
	return &semaphore{wake: make(chan struct{}, 1)}
}

// signal makes one unit available (producer side, nonblocking).
func (s *semaphore) signal() {
	s.count.AddAcqRel(1)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// tryAcquire takes one unit if available (consumer side).
// Only the consumer decrements, so load-then-add does not race.
func (s *semaphore) tryAcquire() bool {
	if s.count.LoadAcquire() > 0 {
		s.count.AddAcqRel(-1)
		return true
	}
	return false
}

// wait takes one unit, spinning briefly and then parking (consumer side).
func (s *semaphore) wait() {
	w := spin.Wait{}
	for i := 0; i < semaphoreSpin; i++ {
		if s.tryAcquire() {
			return
		}
		w.Once()
	}
	for {
		if s.tryAcquire() {
			return
		}
		<-s.wake
	}
}

// waitTimeout is wait with a deadline. Reports whether a unit was taken.
func (s *semaphore) waitTimeout(d time.Duration) bool {
	deadline := time.Now().Add(d)
	w := spin.Wait{}
	for i := 0; i < semaphoreSpin; i++ {
		if s.tryAcquire() {
			return true
		}
		w.Once()
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return s.tryAcquire()
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	for {
		if s.tryAcquire() {
			return true
		}
		select {
		case <-s.wake:
		case <-timer.C:
			return s.tryAcquire()
		}
	}
}

// forget removes n units without waiting (consumer side, after Drain).
func (s *semaphore) forget(n int) {
	if n > 0 {
		s.count.AddAcqRel(-int64(n))
	}
}

// BlockingQueue is an unbounded SPSC queue whose consumer can wait for
// elements instead of polling.
//
// BlockingQueue composes a [Queue] with a lightweight counting
// semaphore. The producer signals the semaphore after each enqueue;
// the consumer spins briefly and then parks when the queue is empty.
// The non-blocking operations remain available and never park.
//
// The single-producer single-consumer contract of [Queue] applies
// unchanged.
type BlockingQueue[T any] struct {
	q   *Queue[T]
	sem *semaphore
}

// NewBlockingQueue creates an unbounded blocking SPSC queue that can
// hold at least maxSize elements before its first allocation.
//
// Panics if maxSize < 1.
func NewBlockingQueue[T any](maxSize int) *BlockingQueue[T] {
	return &BlockingQueue[T]{
		q:   NewQueue[T](maxSize),
		sem: newSemaphore(),
	}
}

// Enqueue adds an element and wakes the consumer (producer only).
// Never fails; allocates a new block when the ring is full.
func (b *BlockingQueue[T]) Enqueue(elem *T) {
	b.q.Enqueue(elem)
	b.sem.signal()
}

// TryEnqueue adds an element without allocating (producer only).
// On success the consumer is woken. Returns ErrWouldBlock if there is
// no room left in the block ring.
func (b *BlockingQueue[T]) TryEnqueue(elem *T) error {
	if err := b.q.TryEnqueue(elem); err != nil {
		return err
	}
	b.sem.signal()
	return nil
}

// Dequeue removes and returns the head element without waiting
// (consumer only). Returns (zero-value, ErrWouldBlock) if the queue
// is empty.
func (b *BlockingQueue[T]) Dequeue() (T, error) {
	if !b.sem.tryAcquire() {
		var zero T
		return zero, ErrWouldBlock
	}
	return b.mustDequeue()
}

// WaitDequeue removes and returns the head element, waiting as long as
// necessary for one to arrive (consumer only).
func (b *BlockingQueue[T]) WaitDequeue() T {
	b.sem.wait()
	elem, _ := b.mustDequeue()
	return elem
}

// WaitDequeueTimeout removes and returns the head element, waiting up
// to d for one to arrive (consumer only). Returns (zero-value,
// ErrWouldBlock) if the deadline expires first.
func (b *BlockingQueue[T]) WaitDequeueTimeout(d time.Duration) (T, error) {
	if !b.sem.waitTimeout(d) {
		var zero T
		return zero, ErrWouldBlock
	}
	return b.mustDequeue()
}

// mustDequeue performs the inner dequeue after a successful semaphore
// acquire. The acquired unit guarantees a visible element, so an empty
// inner queue here means the SPSC contract was broken by the caller.
func (b *BlockingQueue[T]) mustDequeue() (T, error) {
	elem, err := b.q.Dequeue()
	if err != nil {
		panic("rwq: semaphore count ahead of queue contents (single-producer single-consumer contract broken)")
	}
	return elem, nil
}

// Peek returns a pointer to the head element without removing it and
// without consuming the semaphore (consumer only). Returns
// (nil, ErrWouldBlock) if the queue is empty.
func (b *BlockingQueue[T]) Peek() (*T, error) {
	return b.q.Peek()
}

// Pop removes the head element without returning it and without
// waiting (consumer only). Returns ErrWouldBlock if the queue is empty.
func (b *BlockingQueue[T]) Pop() error {
	if !b.sem.tryAcquire() {
		return ErrWouldBlock
	}
	if err := b.q.Pop(); err != nil {
		panic("rwq: semaphore count ahead of queue contents (single-producer single-consumer contract broken)")
	}
	return nil
}

// SizeApprox returns the approximate number of queued elements.
func (b *BlockingQueue[T]) SizeApprox() int {
	return b.q.SizeApprox()
}

// Cap returns the current usable element capacity of the block ring.
func (b *BlockingQueue[T]) Cap() int {
	return b.q.Cap()
}

// Drain consumes all remaining elements in FIFO order (consumer only),
// calling fn for each when fn is non-nil, and returns the number
// drained. The drained units are removed from the semaphore count.
// Must not run concurrently with the producer.
func (b *BlockingQueue[T]) Drain(fn func(T)) int {
	n := b.q.Drain(fn)
	b.sem.forget(n)
	return n
}
