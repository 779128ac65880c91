package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventBus fans events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	dropped atomic.Int64
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

func (b *EventBus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber
// was not keeping up.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribe registers a new subscriber. The returned cancel func removes
// it and closes the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Next returns the next event and whether the read succeeded.
// The bool is false when the context is cancelled or the channel is closed.
func Next(ctx context.Context, ch <-chan Event) (Event, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// Scoped stamps every event with a session id before forwarding it.
type Scoped struct {
	SessionID string
	Target    Publisher
}

func (s Scoped) Publish(ev Event) {
	if s.Target == nil {
		return
	}
	if ev.SessionID == "" {
		ev.SessionID = s.SessionID
	}
	s.Target.Publish(ev)
}
