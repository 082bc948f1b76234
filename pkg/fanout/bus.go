// Package fanout publishes values to independent consumers without letting
// any consumer slow down or break the producer.
package fanout

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-handflow/internal/log"
)

// Bus delivers every published value to all current subscribers.
//
// Publish never blocks: a subscriber whose buffer is full loses its oldest
// pending value so it always catches up to the newest one. Subscribers only
// ever receive copies.
type Bus[T any] struct {
	name string

	mu     sync.RWMutex
	subs   map[uint64]*subscriber[T]
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
	logger    *slog.Logger
}

type subscriber[T any] struct {
	name string
	ch   chan T
}

// New creates a bus. The name tags log lines.
func New[T any](name string) *Bus[T] {
	return &Bus[T]{
		name:   name,
		subs:   make(map[uint64]*subscriber[T]),
		logger: log.Component("fanout").With("bus", name),
	}
}

// Subscribe registers a channel consumer with the given buffer size (minimum 1).
// The returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Bus[T]) Subscribe(name string, buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber[T]{name: name, ch: make(chan T, buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "subscriber", name, "total", count)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.remove(id) })
	}
}

// Handle runs fn for each value on a dedicated goroutine. A panic in fn is
// logged and the consumer keeps receiving. The returned cancel func
// unsubscribes and waits for fn to return.
func (b *Bus[T]) Handle(name string, buffer int, fn func(T)) func() {
	ch, unsubscribe := b.Subscribe(name, buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for v := range ch {
			b.call(name, fn, v)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (b *Bus[T]) call(name string, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("consumer panicked", "subscriber", name, "panic", r)
		}
	}()
	fn(v)
}

// Publish delivers v to every subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
			continue
		default:
		}
		// Full: drop the oldest pending value and retry once
		select {
		case <-sub.ch:
			b.dropped.Add(1)
		default:
		}
		select {
		case sub.ch <- v:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(sub.ch)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if ok {
		b.logger.Debug("subscriber removed", "subscriber", sub.name, "remaining", count)
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns how many values were published and how many deliveries
// were dropped because a subscriber fell behind.
func (b *Bus[T]) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}
