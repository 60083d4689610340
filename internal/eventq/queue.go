// Package eventq delivers values to a single goroutine in push order without
// ever blocking the producer.
package eventq

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type Queue[T any] struct {
	deliver func(T)
	module  string

	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// New starts the delivery goroutine. module tags panics recovered from deliver.
func New[T any](module string, deliver func(T)) *Queue[T] {
	q := &Queue[T]{
		deliver: deliver,
		module:  module,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Push enqueues v and reports whether it was accepted.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close stops accepting values. Values already pushed are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Done is closed once the last value has been delivered after Close.
func (q *Queue[T]) Done() <-chan struct{} { return q.done }

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		items := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		if len(items) == 0 && closed {
			return
		}
		for _, v := range items {
			q.safeDeliver(v)
		}
	}
}

func (q *Queue[T]) safeDeliver(v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", q.module).Interface("panic", r).Msg("event handler panic")
		}
	}()
	q.deliver(v)
}
