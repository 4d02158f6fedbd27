// Package dbuf implements the double-buffered single-producer/single-
// consumer queue that the job scheduler uses to hand batches of work
// from the submitting goroutine to a shard's worker goroutine: two
// fixed-capacity slot slices, one write-side and one read-side, swapped
// atomically on Flush once the consumer has drained the current read
// side.
package dbuf

import "sync/atomic"

// Buffer is a bounded double-buffered SPSC queue for values of type T.
// At most one goroutine at a time may call TryPush/Flush (the producer)
// and exactly one goroutine may call TryPop (the consumer); the
// scheduler guarantees this by serializing its producers with a
// per-queue mutex and giving each queue a single worker.
type Buffer[T any] struct {
	bufA, bufB []T

	write atomic.Pointer[[]T]
	read  atomic.Pointer[[]T]

	swapRequested atomic.Bool

	readIndex  atomic.Uint64
	writeIndex atomic.Uint64
	readSize   atomic.Uint64

	capacity uint64
}

// New creates a Buffer with room for up to capacity pending writes
// between flushes.
func New[T any](capacity int) *Buffer[T] {
	b := &Buffer[T]{
		bufA:     make([]T, capacity),
		bufB:     make([]T, capacity),
		capacity: uint64(capacity),
	}
	b.write.Store(&b.bufA)
	b.read.Store(&b.bufB)
	return b
}

// TryPush places value into the current write buffer and reports
// success. It fails if a swap is in progress or the write buffer is
// full; the caller (the scheduler) yields and retries.
func (b *Buffer[T]) TryPush(value T) bool {
	if b.swapRequested.Load() {
		return false
	}
	widx := b.writeIndex.Load()
	if widx >= b.capacity {
		return false
	}
	w := *b.write.Load()
	w[widx] = value
	b.writeIndex.Store(widx + 1)
	return true
}

// Flush publishes all pending writes to the read side. It requests a
// swap, spins until the consumer has drained the current read buffer,
// swaps the write/read pointers, and publishes the new readable size.
// It is a no-op when there are no pending writes.
func (b *Buffer[T]) Flush() {
	writeSz := b.writeIndex.Load()
	if writeSz == 0 {
		return
	}

	b.swapRequested.Store(true)
	for b.readIndex.Load() < b.readSize.Load() {
		yield()
	}

	w := b.write.Load()
	r := b.read.Load()
	b.write.Store(r)
	b.read.Store(w)

	b.readSize.Store(writeSz)
	b.readIndex.Store(0)
	b.writeIndex.Store(0)

	b.swapRequested.Store(false)
}

// TryPop moves the next readable element into out and advances the read
// index. It returns false when the read buffer is exhausted; if a swap
// is pending at that point it yields once so the producer can proceed.
func (b *Buffer[T]) TryPop(out *T) bool {
	idx := b.readIndex.Load()
	size := b.readSize.Load()
	if idx >= size {
		if b.swapRequested.Load() {
			yield()
		}
		return false
	}
	r := *b.read.Load()
	*out = r[idx]
	b.readIndex.Store(idx + 1)
	return true
}

// Empty reports whether there is nothing pending on either side.
func (b *Buffer[T]) Empty() bool {
	return b.readIndex.Load() >= b.readSize.Load() && b.writeIndex.Load() == 0
}

// Full reports whether the write buffer has reached capacity.
func (b *Buffer[T]) Full() bool {
	return b.writeIndex.Load() >= b.capacity
}

// PendingWrites returns the number of values written since the last
// Flush.
func (b *Buffer[T]) PendingWrites() uint64 {
	return b.writeIndex.Load()
}

// PendingReads returns the number of values in the read buffer not yet
// popped.
func (b *Buffer[T]) PendingReads() uint64 {
	idx, size := b.readIndex.Load(), b.readSize.Load()
	if idx >= size {
		return 0
	}
	return size - idx
}
