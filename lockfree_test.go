// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Lock-free algorithm tests excluded from race detection.
//
// Go's race detector tracks explicit synchronization primitives (mutex, channels,
// WaitGroup) but cannot observe happens-before relationships established through
// atomic memory orderings (acquire-release semantics).
//
// These tests exercise a queue that publishes elements and block links with
// release stores and observes them with acquire loads across two goroutines.
// The algorithm is correct, but the race detector reports false positives
// because it cannot track the synchronization provided by atomic operations
// on separate variables.

//go:build !race

package rwq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/rwq"
)

// =============================================================================
// Concurrent Transfer Tests
// =============================================================================

// TestConcurrentTransfer moves a large ordered stream through the queue with
// one producer and one consumer running at full speed.
func TestConcurrentTransfer(t *testing.T) {
	const n = 1 << 17
	q := rwq.NewQueue[int](15)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := i
			q.Enqueue(&v)
		}
	}()

	backoff := iox.Backoff{}
	for i := 0; i < n; {
		v, err := q.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
		i++
	}
	wg.Wait()

	if _, err := q.Dequeue(); err == nil {
		t.Fatal("queue should be empty after full transfer")
	}
}

// TestConcurrentGrowth starts from the smallest ring so block allocation
// happens while the consumer is actively racing the producer.
func TestConcurrentGrowth(t *testing.T) {
	const n = 1 << 16
	q := rwq.NewQueue[uint64](1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := uint64(i)
			q.Enqueue(&v)
			if i%4096 == 0 {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	backoff := iox.Backoff{}
	for i := 0; i < n; {
		v, err := q.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != uint64(i) {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
		i++
	}
	wg.Wait()

	if q.Cap() <= 1 {
		t.Fatalf("Cap after concurrent growth: got %d, want > 1", q.Cap())
	}
}

// TestConcurrentTryEnqueue runs the bounded producer path: TryEnqueue
// retries on a full ring instead of allocating, so the capacity observed
// at the end must equal the capacity at the start.
func TestConcurrentTryEnqueue(t *testing.T) {
	const n = 1 << 16
	q := rwq.NewQueue[int](7)
	capBefore := q.Cap()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		for i := 0; i < n; {
			v := i
			if err := q.TryEnqueue(&v); err != nil {
				backoff.Wait()
				continue
			}
			backoff.Reset()
			i++
		}
	}()

	backoff := iox.Backoff{}
	for i := 0; i < n; {
		v, err := q.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
		i++
	}
	wg.Wait()

	if q.Cap() != capBefore {
		t.Fatalf("Cap changed under TryEnqueue: got %d, want %d", q.Cap(), capBefore)
	}
}

// TestConcurrentPeek interleaves Peek with Dequeue on the consumer side
// while the producer streams elements through multiple blocks.
func TestConcurrentPeek(t *testing.T) {
	const n = 1 << 14
	q := rwq.NewQueue[int](3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := i
			q.Enqueue(&v)
		}
	}()

	backoff := iox.Backoff{}
	for i := 0; i < n; {
		head, err := q.Peek()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if *head != i {
			t.Fatalf("Peek at %d: got %d", i, *head)
		}
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d) after successful Peek: %v", i, err)
		}
		if v != i {
			t.Fatalf("Dequeue at %d: got %d", i, v)
		}
		i++
	}
	wg.Wait()
}

// =============================================================================
// Blocking Queue Concurrent Tests
// =============================================================================

// TestConcurrentWaitDequeue parks the consumer on an intermittently slow
// producer and checks that every wakeup delivers the next element in order.
func TestConcurrentWaitDequeue(t *testing.T) {
	const n = 1 << 12
	q := rwq.NewBlockingQueue[int](7)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := i
			q.Enqueue(&v)
			if i%256 == 0 {
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()

	for i := range n {
		if got := q.WaitDequeue(); got != i {
			t.Fatalf("WaitDequeue(%d): got %d", i, got)
		}
	}
	wg.Wait()

	if _, err := q.Dequeue(); err == nil {
		t.Fatal("queue should be empty after full transfer")
	}
}

// TestConcurrentWaitDequeueTimeout drains a concurrent stream through the
// timed wait. The deadline is generous, so no call may time out until the
// stream is exhausted.
func TestConcurrentWaitDequeueTimeout(t *testing.T) {
	const n = 1 << 12
	q := rwq.NewBlockingQueue[int](7)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := i
			q.Enqueue(&v)
			if i%512 == 0 {
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()

	for i := range n {
		v, err := q.WaitDequeueTimeout(5 * time.Second)
		if err != nil {
			t.Fatalf("WaitDequeueTimeout(%d): %v", i, err)
		}
		if v != i {
			t.Fatalf("WaitDequeueTimeout(%d): got %d", i, v)
		}
	}
	wg.Wait()

	if _, err := q.WaitDequeueTimeout(time.Millisecond); !iox.IsWouldBlock(err) {
		t.Fatalf("WaitDequeueTimeout on drained: got %v, want would-block", err)
	}
}

// TestConcurrentBlockingMixed mixes non-blocking Dequeue, timed waits, and
// parked waits on the consumer side of one stream.
func TestConcurrentBlockingMixed(t *testing.T) {
	const n = 3 << 12
	q := rwq.NewBlockingQueue[int](15)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			v := i
			q.Enqueue(&v)
		}
	}()

	backoff := iox.Backoff{}
	for i := 0; i < n; {
		var v int
		switch i % 3 {
		case 0:
			v = q.WaitDequeue()
		case 1:
			var err error
			v, err = q.WaitDequeueTimeout(5 * time.Second)
			if err != nil {
				t.Fatalf("WaitDequeueTimeout(%d): %v", i, err)
			}
		default:
			var err error
			v, err = q.Dequeue()
			if err != nil {
				backoff.Wait()
				continue
			}
			backoff.Reset()
		}
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
		i++
	}
	wg.Wait()
}
