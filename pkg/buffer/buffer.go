// Package buffer provides the growable contiguous storage used for every
// dynamically sized array in fth: the bytecode stream, the constant pool,
// the line table and both VM stacks.
//
// A Buffer grows by doubling and shrinks by halving once it is three
// quarters empty, so appends and pops are amortized O(1). Capacity is
// managed explicitly rather than left to append so the policy is the same
// on every platform and can be observed through Cap.
//
// Buffers are not safe for concurrent use.
package buffer

// Buffer is a growable array of T. The zero value is an empty buffer ready
// to use.
type Buffer[T any] struct {
	items []T
}

// New returns a buffer with room for at least capacity items.
func New[T any](capacity int) *Buffer[T] {
	b := &Buffer[T]{}
	if capacity > 0 {
		b.items = make([]T, 0, capacity)
	}
	return b
}

// Len returns the number of items in the buffer.
func (b *Buffer[T]) Len() int {
	return len(b.items)
}

// Cap returns the current capacity.
func (b *Buffer[T]) Cap() int {
	return cap(b.items)
}

// Items returns the live items. The slice aliases the buffer and is only
// valid until the next mutating call.
func (b *Buffer[T]) Items() []T {
	return b.items
}

// At returns the item at index i.
func (b *Buffer[T]) At(i int) T {
	return b.items[i]
}

// Set replaces the item at index i.
func (b *Buffer[T]) Set(i int, v T) {
	b.items[i] = v
}

// Last returns the final item, or false if the buffer is empty.
func (b *Buffer[T]) Last() (T, bool) {
	if len(b.items) == 0 {
		var zero T
		return zero, false
	}
	return b.items[len(b.items)-1], true
}

// Append adds v at the end.
func (b *Buffer[T]) Append(v T) {
	b.maybeGrow(1)
	b.items = append(b.items, v)
}

// Reserve extends the buffer by n zero items and returns them for filling.
func (b *Buffer[T]) Reserve(n int) []T {
	if n <= 0 {
		return nil
	}
	b.maybeGrow(n)
	start := len(b.items)
	b.items = b.items[:start+n]
	clear(b.items[start:])
	return b.items[start:]
}

// Pop removes and returns the final item, or false if the buffer is empty.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	if len(b.items) == 0 {
		return zero, false
	}
	n := len(b.items) - 1
	v := b.items[n]
	b.items[n] = zero
	b.items = b.items[:n]
	b.maybeShrink()
	return v, true
}

// InsertAt inserts v at index i, shifting later items up. i may equal Len.
func (b *Buffer[T]) InsertAt(i int, v T) {
	if i < 0 || i > len(b.items) {
		panic("buffer: insert index out of range")
	}
	b.maybeGrow(1)
	var zero T
	b.items = append(b.items, zero)
	copy(b.items[i+1:], b.items[i:])
	b.items[i] = v
}

// RemoveAt removes and returns the item at index i, shifting later items
// down.
func (b *Buffer[T]) RemoveAt(i int) T {
	if i < 0 || i >= len(b.items) {
		panic("buffer: remove index out of range")
	}
	v := b.items[i]
	n := len(b.items) - 1
	copy(b.items[i:], b.items[i+1:])
	var zero T
	b.items[n] = zero
	b.items = b.items[:n]
	b.maybeShrink()
	return v
}

// Clear removes every item and releases storage down to the shrink floor.
func (b *Buffer[T]) Clear() {
	if b.items == nil {
		return
	}
	clear(b.items)
	b.items = b.items[:0]
	for b.needShrink() {
		b.shrink()
	}
}

// Free releases the backing storage. Freeing an unallocated buffer is a
// no-op.
func (b *Buffer[T]) Free() {
	b.items = nil
}

func (b *Buffer[T]) maybeGrow(inc int) {
	if b.items != nil && len(b.items)+inc < cap(b.items) {
		return
	}
	m := max(2*cap(b.items), len(b.items)+inc)
	grown := make([]T, len(b.items), m)
	copy(grown, b.items)
	b.items = grown
}

func (b *Buffer[T]) needShrink() bool {
	m := cap(b.items)
	return m > 4 && len(b.items) <= m/4
}

func (b *Buffer[T]) maybeShrink() {
	if b.needShrink() {
		b.shrink()
	}
}

func (b *Buffer[T]) shrink() {
	shrunk := make([]T, len(b.items), cap(b.items)/2)
	copy(shrunk, b.items)
	b.items = shrunk
}
