package room

import (
	"sync"

	"github.com/dkeye/VoiceClient/internal/eventq"
	"github.com/dkeye/VoiceClient/internal/metrics"
)

type subscription struct {
	id int
	fn func(Event)
}

// bus fans events out to subscribers in emission order on one goroutine.
type bus struct {
	metrics *metrics.Metrics
	q       *eventq.Queue[Event]

	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func newBus(m *metrics.Metrics) *bus {
	b := &bus{metrics: m}
	b.q = eventq.New("room", b.deliver)
	return b
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) emit(ev Event) {
	if b.q.Push(ev) {
		b.metrics.Event(string(ev.Kind()))
	}
}

func (b *bus) deliver(ev Event) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

func (b *bus) close()                { b.q.Close() }
func (b *bus) done() <-chan struct{} { return b.q.Done() }
