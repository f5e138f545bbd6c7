// Package event is a double-buffered bus between server handlers and the
// side effects that hang off them, such as the session journal. Events
// emitted before a Swap are delivered by the Dispatch that follows it;
// anything emitted during Dispatch waits for the next Swap.
package event

import (
	"reflect"
	"slices"
	"sync"
)

type Bus struct {
	mu       sync.Mutex // guards handlers only; emit and dispatch run on the tick goroutine
	front    []any
	back     []any
	handlers map[reflect.Type][]reflect.Value
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]reflect.Value),
	}
}

// Emit queues ev for the next dispatch.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, ev)
}

// Subscribe registers fn for every event of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], reflect.ValueOf(fn))
}

// Swap makes the events emitted since the last swap current.
func (b *Bus) Swap() {
	clear(b.front)
	b.front, b.back = b.back, b.front[:0]
}

// Dispatch delivers the current events in emission order and returns how
// many were delivered to at least one handler.
func (b *Bus) Dispatch() int {
	delivered := 0
	for _, ev := range b.front {
		hs := b.handlersFor(reflect.TypeOf(ev))
		if len(hs) == 0 {
			continue
		}
		arg := []reflect.Value{reflect.ValueOf(ev)}
		for _, h := range hs {
			h.Call(arg)
		}
		delivered++
	}
	return delivered
}

// handlersFor copies the handlers registered for t so they can run without
// holding mu; a handler may itself call Subscribe.
func (b *Bus) handlersFor(t reflect.Type) []reflect.Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.handlers[t])
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }
