package sequence

// Ring is a fixed-capacity FIFO. Pushing into a full ring evicts the oldest
// element. The zero value is unusable; create rings with NewRing.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

// NewRing creates a ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends value, returning the evicted element if the ring was full.
func (r *Ring[T]) Push(value T) (evicted T, ok bool) {
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = value
		r.size++
		return evicted, false
	}
	evicted = r.items[r.head]
	r.items[r.head] = value
	r.head = (r.head + 1) % len(r.items)
	return evicted, true
}

// At returns the i-th element counting from the oldest.
func (r *Ring[T]) At(i int) (T, bool) {
	if i < 0 || i >= r.size {
		var zero T
		return zero, false
	}
	return r.items[(r.head+i)%len(r.items)], true
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	return r.At(r.size - 1)
}

// Slice copies the contents, oldest first.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Reset drops every element.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.size = 0, 0
}

func (r *Ring[T]) Len() int     { return r.size }
func (r *Ring[T]) Cap() int     { return len(r.items) }
func (r *Ring[T]) IsFull() bool { return r.size == len(r.items) }
