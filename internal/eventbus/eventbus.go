// Package eventbus is an in-memory fanout used to decouple the supervisor
// loop from whoever reports its state.
//
// Publish never blocks. Subscribers get buffered channels; a slow subscriber
// drops events rather than stalling the publisher.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

type Event[T any] struct {
	Time time.Time
	Data T
}

type Bus[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event[T]
	seq     uint64
	dropped atomic.Uint64
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: map[uint64]chan Event[T]{}}
}

func (b *Bus[T]) Publish(data T) {
	e := Event[T]{Time: time.Now(), Data: data}

	// Sends are non-blocking, so holding the read lock is fine and keeps
	// unsubscribe from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of future events and a function that closes it.
func (b *Bus[T]) Subscribe(buffer int) (<-chan Event[T], func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event[T], buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }
