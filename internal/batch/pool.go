package batch

import "sync"

// Pool is a thread-safe work pool shared by the workers of one batch.
//
// Items are popped from the back; processing order is unspecified.
type Pool[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewPool creates a pool holding a copy of items.
func NewPool[T any](items []T) *Pool[T] {
	return &Pool[T]{items: append([]T(nil), items...)}
}

// Pop removes and returns one item.
// Returns (zero, false) once the pool is empty.
func (p *Pool[T]) Pop() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	n := len(p.items)
	if n == 0 {
		return zero, false
	}

	item := p.items[n-1]
	p.items[n-1] = zero // release the slot for GC
	p.items = p.items[:n-1]
	return item, true
}

// Len returns the number of items left.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
