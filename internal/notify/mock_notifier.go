package notify

import (
	"context"
	"sync"

	"draft-relay/internal/model"
)

// MockNotifier is a mock implementation of NotificationGateway for testing.
// Every call is recorded in Sent.
type MockNotifier struct {
	AnnounceFunc func(ctx context.Context, target string, n *model.Notification) (string, error)

	mu   sync.Mutex
	Sent []*model.Notification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Announce(ctx context.Context, target string, n *model.Notification) (string, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, n)
	m.mu.Unlock()

	if m.AnnounceFunc != nil {
		return m.AnnounceFunc(ctx, target, n)
	}
	return "mock-delivery", nil
}

// Kinds returns the kinds of all recorded notifications in order.
func (m *MockNotifier) Kinds() []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]model.NotificationKind, 0, len(m.Sent))
	for _, n := range m.Sent {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}
