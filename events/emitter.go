// Package events carries manager notifications to in-process listeners and, optionally,
// to a pubsub topic so other processes can observe task completions.
package events

import "github.com/pitabwire/langpack/registry"

// Emitter multicasts values of type T to its listeners in subscription order.
// Listeners may unsubscribe themselves, or each other, while an Emit is running.
type Emitter[T any] struct {
	listeners *registry.Registry[func(T)]
}

func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{listeners: registry.New[func(T)](0)}
}

func (e *Emitter[T]) Subscribe(fn func(T)) registry.Handle {
	return e.listeners.Add(fn)
}

func (e *Emitter[T]) Unsubscribe(h registry.Handle) bool {
	return e.listeners.Remove(h)
}

func (e *Emitter[T]) Len() int {
	return e.listeners.Len()
}

// Emit calls every listener with v on the calling goroutine.
func (e *Emitter[T]) Emit(v T) {
	e.listeners.Each(func(fn func(T)) {
		fn(v)
	})
}
