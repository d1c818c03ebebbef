// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package events provides a small typed publish/subscribe bus.

Every entity and every collection owns its own bus. Listeners are called in
registration order, synchronously from the goroutine that emits. A listener is
removed with the Subscription handle returned when it was registered.
*/
package events

import (
	"sync"
)

// Event is what listeners receive
type Event[T any] struct {
	Name    string
	Payload T
}

// Listener is a callback for a bus
type Listener[T any] func(Event[T])

type subscriber[T any] struct {
	id   uint64
	name string // empty for wildcard subscribers
	once bool
	fn   Listener[T]
}

// Bus is a publish/subscribe channel for events carrying a payload of type T.
// The zero value is ready to use.
type Bus[T any] struct {
	mutex       sync.Mutex
	nextID      uint64
	subscribers []subscriber[T]
}

// Subscription is the handle of a registered listener
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the listener from its bus. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// On registers a listener for events with the given name
func (b *Bus[T]) On(name string, fn Listener[T]) *Subscription {
	return b.subscribe(subscriber[T]{name: name, fn: fn})
}

// Once registers a listener which is removed after it was called the first time
func (b *Bus[T]) Once(name string, fn Listener[T]) *Subscription {
	return b.subscribe(subscriber[T]{name: name, fn: fn, once: true})
}

// OnAny registers a listener for all events of the bus
func (b *Bus[T]) OnAny(fn Listener[T]) *Subscription {
	return b.subscribe(subscriber[T]{fn: fn})
}

func (b *Bus[T]) subscribe(s subscriber[T]) *Subscription {
	if s.fn == nil {
		panic("events: nil listener")
	}
	b.mutex.Lock()
	b.nextID++
	s.id = b.nextID
	b.subscribers = append(b.subscribers, s)
	b.mutex.Unlock()

	id := s.id
	return &Subscription{cancel: func() { b.remove(id) }}
}

func (b *Bus[T]) remove(id uint64) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls all listeners for name, in the order they were registered. Listeners
// run outside the bus lock, so they may subscribe, unsubscribe or emit themselves.
func (b *Bus[T]) Emit(name string, payload T) {
	b.mutex.Lock()
	var matching []subscriber[T]
	for _, s := range b.subscribers {
		if s.name == "" || s.name == name {
			matching = append(matching, s)
		}
	}
	b.mutex.Unlock()

	event := Event[T]{Name: name, Payload: payload}
	for _, s := range matching {
		if s.once && !b.remove(s.id) {
			continue // a concurrent emit got there first
		}
		s.fn(event)
	}
}

// Count returns the number of listeners which would receive an event with the given name
func (b *Bus[T]) Count(name string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	n := 0
	for _, s := range b.subscribers {
		if s.name == "" || s.name == name {
			n++
		}
	}
	return n
}

// Clear removes all listeners
func (b *Bus[T]) Clear() {
	b.mutex.Lock()
	b.subscribers = nil
	b.mutex.Unlock()
}
