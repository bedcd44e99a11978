// Package state provides an observable value container owned by its caller.
//
// Writes are serialized. Each committed value is delivered to every
// subscriber, in commit order, with subscribers called in the order they
// registered. Callbacks run on the writing goroutine and must not write to
// the container that is notifying them.
package state

import "sync"

// Container holds a value of type T and notifies subscribers on change.
type Container[T any] struct {
	commit sync.Mutex // serializes write + notify
	mu     sync.RWMutex
	value  T
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New returns a container holding initial.
func New[T any](initial T) *Container[T] {
	return &Container[T]{value: initial}
}

// Get returns the current value.
func (c *Container[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Container[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update applies fn to the current value and commits the result.
func (c *Container[T]) Update(fn func(T) T) T {
	c.commit.Lock()
	defer c.commit.Unlock()

	c.mu.Lock()
	next := fn(c.value)
	c.value = next
	subs := append([]subscriber[T](nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
	return next
}

// Subscribe registers fn, calls it with the current value, and returns a
// function that removes the subscription.
func (c *Container[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	c.commit.Lock()
	defer c.commit.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	current := c.value
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Derive returns a container whose value is fn(src) and is recomputed on
// every commit to src. Call stop to detach it from src.
func Derive[S, D any](src *Container[S], fn func(S) D) (derived *Container[D], stop func()) {
	var zero D
	derived = New(zero)
	stop = src.Subscribe(func(v S) {
		derived.Set(fn(v))
	})
	return derived, stop
}
