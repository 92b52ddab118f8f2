package application

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType enumerates pool lifecycle notifications.
type EventType string

const (
	EventAdded       EventType = "added"
	EventUpdated     EventType = "updated"
	EventRemoved     EventType = "removed"
	EventError       EventType = "error"
	EventStreamError EventType = "stream:error"
)

// Event is one pool lifecycle notification. Err carries detail for the
// error-flavored types.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	CustomerID  string    `json:"customer_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Err         string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// EventBus is a small in-process pub/sub channel fan-out. Publishing never
// blocks reconciliation: a subscriber whose buffer is full misses the event.
// The pool's invariants hold with zero subscribers.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given buffer size and returns the
// receive channel plus an unsubscribe func. Unsubscribe closes the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish stamps the event with an ID and timestamp and fans it out.
func (b *EventBus) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
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
			// subscriber is slow; drop rather than stall the pool
		}
	}
}

// Close terminates all subscriptions. Subsequent publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
