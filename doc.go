// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rwq provides an unbounded single-producer single-consumer
// FIFO queue.
//
// The package offers two variants sharing one core algorithm:
//
//   - Queue: non-blocking operations only, lowest overhead
//   - BlockingQueue: adds consumer-side waiting on top of Queue
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := rwq.NewQueue[Event](128)
//	bq := rwq.NewBlockingQueue[Request](1024)
//
// Builder API:
//
//	q := rwq.Build[Event](rwq.New(128))
//	bq := rwq.BuildBlocking[Request](rwq.New(1024))
//	q := rwq.Build[int](rwq.NewDefault())
//
// # Basic Usage
//
//	// Create a queue able to hold 128 elements before allocating
//	q := rwq.NewQueue[int](128)
//
//	// Enqueue (never fails, allocates when full)
//	value := 42
//	q.Enqueue(&value)
//
//	// Enqueue without allocating
//	err := q.TryEnqueue(&value)
//	if rwq.IsWouldBlock(err) {
//	    // Block ring is full - accept the allocation or back off
//	}
//
//	// Dequeue (non-blocking)
//	elem, err := q.Dequeue()
//	if rwq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Algorithm
//
// The queue is a circular singly-linked ring of blocks, each block a
// bounded ring buffer with power-of-2 capacity. The producer fills the
// tail block; when every block is full it splices in a new block of
// twice the previous largest size. The consumer empties the front
// block and follows the ring as blocks drain. Emptied blocks stay in
// the ring and are reused, so a queue that has reached its high-water
// mark never allocates again.
//
// On the hot path Enqueue costs one ordered load and one ordered
// store on indices local to a single block; Dequeue adds one ordered
// load of the tail-block pointer. There is no compare-and-swap
// anywhere. The unusual property for an unbounded
// queue is that both Enqueue (when not allocating) and Dequeue are
// wait-free.
//
// # Common Patterns
//
// Pipeline Stage:
//
//	// Stage 1 → Queue → Stage 2
//	q := rwq.NewQueue[Data](1024)
//
//	go func() { // Producer (Stage 1)
//	    for data := range input {
//	        q.Enqueue(&data)
//	    }
//	}()
//
//	go func() { // Consumer (Stage 2)
//	    backoff := iox.Backoff{}
//	    for {
//	        data, err := q.Dequeue()
//	        if err != nil {
//	            backoff.Wait()
//	            continue
//	        }
//	        backoff.Reset()
//	        process(data)
//	    }
//	}()
//
// Parked Consumer (BlockingQueue):
//
//	bq := rwq.NewBlockingQueue[Event](1024)
//
//	go func() { // Consumer sleeps between bursts
//	    for {
//	        ev := bq.WaitDequeue()
//	        handle(ev)
//	    }
//	}()
//
//	// Producer wakes it as needed
//	bq.Enqueue(&ev)
//
// In-place Inspection:
//
//	// Look at the head without copying it out
//	head, err := q.Peek()
//	if err == nil && head.Expired() {
//	    q.Pop() // discard
//	}
//
// # Capacity and Growth
//
// NewQueue(maxSize) guarantees room for maxSize elements before the
// first allocation; the first block rounds maxSize+1 up to the next
// power of 2 (one slot per block is always unused). Minimum maxSize
// is 1. Panic if maxSize < 1.
//
// Each allocation doubles the largest block size, so n elements reach
// a steady state after O(log n) allocations. Blocks are never freed;
// Cap reports the current high-water capacity.
//
// TryEnqueue never allocates and reports [ErrWouldBlock] instead. Use
// it to keep latency-critical producers allocation-free after warm-up.
//
// SizeApprox walks the block ring and is only exact while both sides
// are quiescent. It exists for monitoring, not for flow control.
//
// # Error Handling
//
// Operations return [ErrWouldBlock] when they cannot proceed. This
// error is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency.
//
//	// Retry loop with backoff
//	backoff := iox.Backoff{}
//	for {
//	    elem, err := q.Dequeue()
//	    if err == nil {
//	        backoff.Reset()
//	        process(elem)
//	        continue
//	    }
//	    if !rwq.IsWouldBlock(err) {
//	        return err // Unexpected error
//	    }
//	    backoff.Wait()
//	}
//
// For semantic error classification (delegates to iox):
//
//	rwq.IsWouldBlock(err)  // true if queue empty / ring full / timed out
//	rwq.IsSemantic(err)    // true if control flow signal
//	rwq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// # Thread Safety
//
// Exactly one goroutine may call producer operations (Enqueue,
// TryEnqueue) and exactly one may call consumer operations (Dequeue,
// Peek, Pop, Drain, WaitDequeue, WaitDequeueTimeout). The two roles
// may be held by different goroutines, and either role may move
// between goroutines with external synchronization in between.
// SizeApprox and Cap are safe from either side.
//
// Violating these constraints causes undefined behavior including
// data corruption. When the race detector is active, the queue carries
// reentrance guards that panic on concurrent or reentrant misuse of a
// role, including calling a consumer operation from a Drain callback.
// Each role has its own guard, so a producer operation called from a
// Drain callback is not detected.
//
// # Blocking Queue
//
// BlockingQueue pairs the core queue with a lightweight counting
// semaphore. The producer's signal is nonblocking; the consumer spins
// briefly before parking, so latency stays flat under load and the
// consumer goroutine sleeps when the queue idles.
//
//	elem := bq.WaitDequeue()                              // wait forever
//	elem, err := bq.WaitDequeueTimeout(time.Millisecond)  // bounded wait
//
// WaitDequeueTimeout returns [ErrWouldBlock] when the deadline expires,
// the same signal as an empty non-blocking Dequeue.
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm
// verification. It tracks explicit synchronization primitives (mutex,
// channels, WaitGroup) but cannot observe happens-before relationships
// established through atomic memory orderings on separate variables,
// so correct acquire-release protocols may be reported as races.
//
// Tests incompatible with race detection are excluded via
// //go:build !race. The reentrance guards described under Thread
// Safety are active only in race builds and cost nothing otherwise.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in the blocking queue's spin phase.
package rwq
