// Package eventbus fans dispatch-side events out to in-process consumers:
// assignment commits, lifecycle transitions and reconciler repairs on the
// untyped bus, realtime record changes on per-table typed buses owned by the
// SubscriptionManager. Delivery is lossy by contract: a consumer that stops
// draining loses events instead of blocking the dispatcher.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer is the per-subscriber channel depth. A consumer lagging
// behind this many events starts losing them.
const subscriberBuffer = 8

// Event is anything published on the bus; consumers type-switch on the
// concrete types in core/events.
type Event interface{}

// EventBus is the publishing surface handed to the assignment manager and
// the reconciler.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the in-process EventBus implementation.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	closed  bool
	dropped atomic.Uint64
}

// New creates an empty Bus.
func New() *Bus { return &Bus{} }

// Publish delivers the event to every subscriber whose buffer has room and
// counts the deliveries that were dropped.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a new consumer. After Close the returned channel is
// already closed.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the consumer and closes its channel. Unknown channels
// are ignored.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Dropped reports how many deliveries were lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscriber channel. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
