package eventbus

import (
	"testing"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/model"
)

func TestBusDeliversAssignmentEvents(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish(events.AssignmentEvent{
		Assignment: model.Assignment{ID: "a1", RequestID: "r1", VolunteerID: "v1"},
		Score:      0.87,
	})
	got, ok := (<-ch).(events.AssignmentEvent)
	if !ok {
		t.Fatalf("expected AssignmentEvent")
	}
	if got.Assignment.ID != "a1" || got.Score != 0.87 {
		t.Fatalf("unexpected event %+v", got)
	}
	bus.Unsubscribe(ch)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := New()
	_ = bus.Subscribe()
	for i := 0; i < subscriberBuffer+3; i++ {
		bus.Publish(i)
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped deliveries, got %d", got)
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	// Subscriptions after Close come back already closed.
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected post-close subscription closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
