// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rwq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
)

// block is one fixed-size segment of the queue's circular block ring.
//
// Each block is a bounded ring buffer with power-of-2 capacity.
// front and tail index into buf; front==tail means the block is empty,
// so one slot per block is always unused.
//
// Ownership: the consumer advances front, the producer advances tail
// and links next. Neither index is written by the other side.
type block[T any] struct {
	_        pad
	front    atomix.Uint64 // Consumer dequeues from here
	_        pad
	tail     atomix.Uint64 // Producer enqueues here
	_        pad
	next     atomix.Uintptr // *block[T], links the circular ring
	_        pad
	buf      []T
	sizeMask uint64
}

// newBlock creates an empty block with the given power-of-2 size.
func newBlock[T any](size uint64) *block[T] {
	return &block[T]{
		buf:      make([]T, size),
		sizeMask: size - 1,
	}
}

// blockAddr converts a block pointer to its address for lock-free publication.
func blockAddr[T any](b *block[T]) uintptr {
	return uintptr(unsafe.Pointer(b))
}

// blockAt converts a published address back to a block pointer.
// Safe because every block is also referenced from Queue.blocks,
// which keeps it reachable for the lifetime of the queue.
func blockAt[T any](p uintptr) *block[T] {
	return (*block[T])(unsafe.Pointer(p))
}

// Queue is an unbounded single-producer single-consumer FIFO queue.
//
// The queue is a circular singly-linked ring of blocks. The producer
// enqueues into the block at tailBlock; when the ring is full end to
// end, it splices in a new block of twice the previous largest size.
// The consumer dequeues from the block at frontBlock and follows next
// links as blocks empty. Blocks are reused in place and never removed,
// so a queue that has reached its high-water mark allocates nothing.
//
// Exactly one goroutine may enqueue and exactly one may dequeue.
// The producer and consumer may be different goroutines. All other
// concurrent use is undefined; when the race detector is active,
// reentrant or concurrent misuse panics with a diagnostic.
//
// Memory: O(total capacity), grows geometrically, never shrinks.
type Queue[T any] struct {
	_          pad
	frontBlock atomix.Uintptr // *block[T], consumer advances
	_          pad
	tailBlock atomix.Uintptr // *block[T], producer advances
	_         pad

	// Producer-owned bookkeeping. blocks pins every block for the GC;
	// the ring itself links blocks only by address.
	largestBlockSize uint64
	blocks           []*block[T]

	producing reentrantGuard
	consuming reentrantGuard
}

// DefaultMaxSize is the element capacity used by NewDefault.
const DefaultMaxSize = 15

// NewQueue creates an unbounded SPSC queue that can hold at least
// maxSize elements before its first allocation.
//
// The first block size rounds maxSize+1 up to the next power of 2
// (one slot per block is always unused).
//
// Panics if maxSize < 1.
func NewQueue[T any](maxSize int) *Queue[T] {
	if maxSize < 1 {
		panic("rwq: max size must be >= 1")
	}

	size := uint64(roundToPow2(maxSize + 1))
	b := newBlock[T](size)
	b.next.StoreRelaxed(blockAddr(b))

	q := &Queue[T]{
		largestBlockSize: size,
		blocks:           []*block[T]{b},
	}
	q.frontBlock.StoreRelaxed(blockAddr(b))
	q.tailBlock.StoreRelaxed(blockAddr(b))
	return q
}

// Enqueue adds an element to the queue (producer only).
//
// The element is copied into the queue's internal buffer. Enqueue
// never fails: when the block ring is full it allocates a new block,
// doubling the largest block size.
func (q *Queue[T]) Enqueue(elem *T) {
	q.producing.enter("Enqueue")
	q.enqueue(elem, true)
	q.producing.exit()
}

// TryEnqueue adds an element without allocating (producer only).
// Returns ErrWouldBlock if there is no room left in the block ring.
func (q *Queue[T]) TryEnqueue(elem *T) error {
	q.producing.enter("TryEnqueue")
	err := q.enqueue(elem, false)
	q.producing.exit()
	return err
}

func (q *Queue[T]) enqueue(elem *T, canAlloc bool) error {
	tb := blockAt[T](q.tailBlock.LoadRelaxed())
	tail := tb.tail.LoadRelaxed()
	nextTail := (tail + 1) & tb.sizeMask
	front := tb.front.LoadAcquire()

	if nextTail != front {
		// Room in the current block.
		tb.buf[tail] = *elem
		tb.tail.StoreRelease(nextTail)
		return nil
	}

	if tb.next.LoadRelaxed() != q.frontBlock.LoadAcquire() {
		// Current block is full but the next one has been emptied by
		// the consumer already. The acquire on its front index orders
		// our slot write after the consumer's last pass over it.
		nb := blockAt[T](tb.next.LoadRelaxed())
		nbTail := nb.tail.LoadRelaxed()
		_ = nb.front.LoadAcquire()

		nb.buf[nbTail] = *elem
		nb.tail.StoreRelaxed((nbTail + 1) & nb.sizeMask)
		q.tailBlock.StoreRelease(blockAddr(nb))
		return nil
	}

	if !canAlloc {
		return ErrWouldBlock
	}

	// Ring is full end to end. Splice a new block in after the current
	// one. The element and all links become visible to the consumer
	// with the release store to tailBlock.
	q.largestBlockSize *= 2
	nb := newBlock[T](q.largestBlockSize)
	q.blocks = append(q.blocks, nb)

	nb.buf[0] = *elem
	nb.tail.StoreRelaxed(1)
	nb.next.StoreRelaxed(tb.next.LoadRelaxed())
	tb.next.StoreRelaxed(blockAddr(nb))
	q.tailBlock.StoreRelease(blockAddr(nb))
	return nil
}

// Dequeue removes and returns the head element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) Dequeue() (T, error) {
	q.consuming.enter("Dequeue")
	elem, err := q.dequeue()
	q.consuming.exit()
	return elem, err
}

func (q *Queue[T]) dequeue() (T, error) {
	var zero T

	// The tail block must be observed before the front block's indices.
	// Reading them the other way around can miss a block the producer
	// filled and moved past in between the two loads.
	tailAtStart := q.tailBlock.LoadAcquire()
	fb := blockAt[T](q.frontBlock.LoadRelaxed())
	front := fb.front.LoadRelaxed()
	tail := fb.tail.LoadAcquire()

	if front != tail {
		elem := fb.buf[front]
		fb.buf[front] = zero
		fb.front.StoreRelease((front + 1) & fb.sizeMask)
		return elem, nil
	}

	if blockAddr(fb) == tailAtStart {
		return zero, ErrWouldBlock
	}

	// Front block is exhausted and the producer has moved past it, so
	// the next block holds at least one element. Publish the advance
	// before dequeueing; the producer never reuses the block that
	// frontBlock points at, so this hands fb back for reuse.
	nb := blockAt[T](fb.next.LoadRelaxed())
	nbFront := nb.front.LoadRelaxed()
	_ = nb.tail.LoadAcquire()
	q.frontBlock.StoreRelease(blockAddr(nb))

	elem := nb.buf[nbFront]
	nb.buf[nbFront] = zero
	nb.front.StoreRelease((nbFront + 1) & nb.sizeMask)
	return elem, nil
}

// Peek returns a pointer to the head element without removing it
// (consumer only). The pointer stays valid until the next Dequeue,
// Pop or Drain call. Returns (nil, ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) Peek() (*T, error) {
	q.consuming.enter("Peek")
	elem, err := q.peek()
	q.consuming.exit()
	return elem, err
}

func (q *Queue[T]) peek() (*T, error) {
	tailAtStart := q.tailBlock.LoadAcquire()
	fb := blockAt[T](q.frontBlock.LoadRelaxed())
	front := fb.front.LoadRelaxed()
	tail := fb.tail.LoadAcquire()

	if front != tail {
		return &fb.buf[front], nil
	}
	if blockAddr(fb) == tailAtStart {
		return nil, ErrWouldBlock
	}

	nb := blockAt[T](fb.next.LoadRelaxed())
	nbFront := nb.front.LoadRelaxed()
	_ = nb.tail.LoadAcquire()
	return &nb.buf[nbFront], nil
}

// Pop removes the head element without returning it (consumer only).
// Returns ErrWouldBlock if the queue is empty.
func (q *Queue[T]) Pop() error {
	q.consuming.enter("Pop")
	_, err := q.dequeue()
	q.consuming.exit()
	return err
}

// SizeApprox returns the approximate number of queued elements.
//
// The count walks the whole block ring and is only exact when neither
// the producer nor the consumer is active during the walk. Safe to
// call from either side.
func (q *Queue[T]) SizeApprox() int {
	result := uint64(0)
	first := q.frontBlock.LoadAcquire()
	p := first
	for {
		b := blockAt[T](p)
		front := b.front.LoadAcquire()
		tail := b.tail.LoadAcquire()
		result += (tail - front) & b.sizeMask
		p = b.next.LoadRelaxed()
		if p == first {
			break
		}
	}
	return int(result)
}

// Cap returns the current usable element capacity of the block ring.
// Grows as the queue allocates blocks; never shrinks.
func (q *Queue[T]) Cap() int {
	result := uint64(0)
	first := q.frontBlock.LoadAcquire()
	p := first
	for {
		b := blockAt[T](p)
		result += b.sizeMask
		p = b.next.LoadRelaxed()
		if p == first {
			break
		}
	}
	return int(result)
}

// Drain consumes all remaining elements in FIFO order (consumer only),
// calling fn for each when fn is non-nil, and returns the number
// drained. Drain must not run concurrently with the producer.
func (q *Queue[T]) Drain(fn func(T)) int {
	q.consuming.enter("Drain")
	n := 0
	for {
		elem, err := q.dequeue()
		if err != nil {
			break
		}
		if fn != nil {
			fn(elem)
		}
		n++
	}
	q.consuming.exit()
	return n
}
