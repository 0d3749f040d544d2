package event

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultBuffer is the subscriber channel capacity used by [Broker.Subscribe]
// when the caller passes a non-positive buffer size.
const DefaultBuffer = 64

// DropFunc is invoked (synchronously, so keep it cheap) whenever an event
// is dropped because a subscriber's buffer is full. Used to feed metrics.
type DropFunc func(t Type)

// Broker fans events out to zero or more subscribers. Publishing is
// strictly non-blocking: a slow or absent subscriber never stalls state
// mutation — its events are dropped instead.
//
// Broker is safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	onDrop DropFunc
}

// NewBroker creates an empty Broker. onDrop may be nil.
func NewBroker(onDrop DropFunc) *Broker {
	return &Broker{
		subs:   make(map[int]chan Event),
		onDrop: onDrop,
	}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. The channel is closed on cancel. buffer <= 0 selects
// [DefaultBuffer].
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every subscriber whose buffer has room and drops
// it for the rest. ev.Time is stamped here if unset.
func (b *Broker) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("event dropped for slow subscriber",
				"type", ev.Type, "subscriber", id)
			if b.onDrop != nil {
				b.onDrop(ev.Type)
			}
		}
	}
}
