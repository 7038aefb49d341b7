package eventbus

import (
	"sync"

	"github.com/sevaops/seva/core/events"
)

// SubscriptionManager owns the realtime change-feed channels, one typed bus
// per table. It replaces ad-hoc module-level subscription maps: channel
// lifetime is scoped to this object and every subscription can be released.
type SubscriptionManager struct {
	mu     sync.Mutex
	tables map[string]*TypedBus[events.ChangeEvent]
	closed bool
}

// NewSubscriptionManager creates an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{tables: make(map[string]*TypedBus[events.ChangeEvent])}
}

// Subscribe returns a channel receiving changes for the given table.
func (m *SubscriptionManager) Subscribe(table string) <-chan events.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		ch := make(chan events.ChangeEvent)
		close(ch)
		return ch
	}
	bus, ok := m.tables[table]
	if !ok {
		bus = NewTyped[events.ChangeEvent]()
		m.tables[table] = bus
	}
	return bus.Subscribe()
}

// Unsubscribe releases the subscription and closes its channel.
func (m *SubscriptionManager) Unsubscribe(table string, sub <-chan events.ChangeEvent) {
	m.mu.Lock()
	bus, ok := m.tables[table]
	m.mu.Unlock()
	if ok {
		bus.Unsubscribe(sub)
	}
}

// Dispatch fans a change out to the table's subscribers. Delivery is
// non-blocking; consumers must order by the event timestamp, not arrival.
func (m *SubscriptionManager) Dispatch(ev events.ChangeEvent) {
	m.mu.Lock()
	bus, ok := m.tables[ev.Table]
	m.mu.Unlock()
	if ok {
		bus.Publish(ev)
	}
}

// Close shuts every table bus down. Further subscriptions receive a closed
// channel. Close is idempotent.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, bus := range m.tables {
		bus.Close()
	}
	m.tables = map[string]*TypedBus[events.ChangeEvent]{}
}
