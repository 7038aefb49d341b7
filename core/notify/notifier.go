package notify

import (
	"context"
	"sync"
)

// Notifier delivers a message to a volunteer's device. Delivery is
// fire-and-forget: a failed notification never unwinds a committed
// assignment, callers log and count the error instead.
type Notifier interface {
	Notify(ctx context.Context, volunteerID, title, body string, data map[string]string) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string, map[string]string) error {
	return nil
}

// Message records one delivered notification; used by MockNotifier.
type Message struct {
	VolunteerID string
	Title       string
	Body        string
	Data        map[string]string
}

// MockNotifier records notifications for tests and can be told to fail.
type MockNotifier struct {
	mu       sync.Mutex
	Messages []Message
	FailIDs  map[string]bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailIDs: make(map[string]bool)}
}

// Notify records the message or fails if the volunteer id is marked.
func (m *MockNotifier) Notify(_ context.Context, volunteerID, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[volunteerID] {
		return errDeliveryFailed
	}
	m.Messages = append(m.Messages, Message{VolunteerID: volunteerID, Title: title, Body: body, Data: data})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}
