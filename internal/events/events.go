// Package events provides a typed observer list with ordered, isolated
// dispatch. It replaces untyped event-emitter patterns: subscribers receive a
// concrete event type, fire in registration order, and a panicking subscriber
// cannot suppress the ones registered after it.
package events

import "sync"

// Bus dispatches events of type T to subscribers in registration order.
// The zero value is not usable; create one with New.
type Bus[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []entry[T]
}

type entry[T any] struct {
	id int
	fn func(T)
}

// New returns an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.entries = append(b.entries, entry[T]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.entries {
			if e.id == id {
				b.entries = append(b.entries[:i], b.entries[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every subscriber with ev, in registration order. Each call is
// isolated: a panic in one subscriber is recovered and the remaining
// subscribers still run.
func (b *Bus[T]) Emit(ev T) {
	b.mu.Lock()
	snapshot := make([]entry[T], len(b.entries))
	copy(snapshot, b.entries)
	b.mu.Unlock()

	for _, e := range snapshot {
		invoke(e.fn, ev)
	}
}

// Len reports the number of registered subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func invoke[T any](fn func(T), ev T) {
	defer func() { _ = recover() }()
	fn(ev)
}
