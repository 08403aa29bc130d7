package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultSubscriberBuffer = 64

// Broadcaster is an EventPublisher that fans events out to subscribers
// (the SSE stream). A subscriber that falls behind loses events rather than
// stalling the session.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]chan Event
	buf     int
	dropped atomic.Uint64
}

// NewBroadcaster returns a broadcaster whose subscriber channels hold buf events.
func NewBroadcaster(buf int) *Broadcaster {
	if buf <= 0 {
		buf = defaultSubscriberBuffer
	}
	return &Broadcaster{subs: make(map[uuid.UUID]chan Event), buf: buf}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel.
func (b *Broadcaster) Subscribe() (uuid.UUID, <-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return id, ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
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

// Subscribers is the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped is the number of events not delivered to slow subscribers.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }
