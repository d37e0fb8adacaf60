package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered dispatcher. Events emitted during tick N are
// delivered at the start of tick N+1, so handlers always observe settled
// state. Emit and Dispatch run on the owning room goroutine; only handler
// registration takes the lock.
type Bus struct {
	mu       sync.Mutex
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit queues an event for the next Dispatch.
func Emit[T any](b *Bus, ev T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.back[t] = append(b.back[t], ev)
}

// Subscribe registers a handler for events of type T. The closure performs
// the one type assertion so dispatch itself stays reflection-free.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// Dispatch rotates the buffers and delivers everything emitted since the
// previous call. Events emitted by handlers land in the fresh back buffer
// and wait for the next tick.
func (b *Bus) Dispatch() {
	b.front, b.back = b.back, b.front
	for t := range b.back {
		b.back[t] = b.back[t][:0]
	}
	for t, events := range b.front {
		hs := b.handlers[t]
		for _, ev := range events {
			for _, h := range hs {
				h(ev)
			}
		}
	}
}

// Pending counts events waiting for the next Dispatch.
func (b *Bus) Pending() int {
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}
