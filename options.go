// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rwq

// Options configures queue creation.
type Options struct {
	// Element capacity guaranteed before the first allocation
	// (rounds up internally to a power of 2 minus one slot).
	maxSize int
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// Plain non-blocking queue
//	q := rwq.Build[Event](rwq.New(128))
//
//	// Blocking consumer side
//	bq := rwq.BuildBlocking[Request](rwq.New(1024))
//
//	// Default sizing
//	q := rwq.Build[int](rwq.NewDefault())
type Builder struct {
	opts Options
}

// New creates a queue builder with the given guaranteed pre-allocation
// capacity. The queue itself is unbounded; maxSize only sizes the first
// block.
//
// Panics if maxSize < 1.
func New(maxSize int) *Builder {
	if maxSize < 1 {
		panic("rwq: max size must be >= 1")
	}
	return &Builder{opts: Options{maxSize: maxSize}}
}

// NewDefault creates a queue builder with DefaultMaxSize capacity.
func NewDefault() *Builder {
	return New(DefaultMaxSize)
}

// Build creates a non-blocking Queue[T].
func Build[T any](b *Builder) *Queue[T] {
	return NewQueue[T](b.opts.maxSize)
}

// BuildBlocking creates a BlockingQueue[T].
func BuildBlocking[T any](b *Builder) *BlockingQueue[T] {
	return NewBlockingQueue[T](b.opts.maxSize)
}

// roundToPow2 rounds n up to the next power of 2, with a minimum of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
