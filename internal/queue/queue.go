package queue

import (
	"sync"
)

// WorkStack is a LIFO of pending work shared by a pool of workers.
//
// Every value handed out by Pop is considered in flight until the worker calls
// Done. Pop blocks while the stack is empty but work is still in flight, since
// that work may push more items. Once the stack is empty and nothing is in
// flight, or the stack is closed, Pop returns false to every worker.
type WorkStack[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	inFlight int
	closed   bool
}

// NewWorkStack creates a stack seeded with items
func NewWorkStack[T any](items ...T) *WorkStack[T] {
	s := &WorkStack[T]{
		items: append([]T(nil), items...),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push adds a value. Pushing to a closed stack is a no-op.
func (s *WorkStack[T]) Push(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.items = append(s.items, value)
	s.cond.Signal()
}

// Pop takes the most recently pushed value and marks it in flight
func (s *WorkStack[T]) Pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.items) == 0 && s.inFlight > 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed || len(s.items) == 0 {
		var zero T
		return zero, false
	}

	n := len(s.items) - 1
	value := s.items[n]
	var zero T
	s.items[n] = zero
	s.items = s.items[:n]
	s.inFlight++
	return value, true
}

// Done marks one popped value as finished
func (s *WorkStack[T]) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight > 0 {
		s.inFlight--
	}
	if s.inFlight == 0 && len(s.items) == 0 {
		s.cond.Broadcast()
	}
}

// Close drops pending items and wakes every waiting worker
func (s *WorkStack[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.items = nil
	s.cond.Broadcast()
}

// Len returns the number of pending items
func (s *WorkStack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
