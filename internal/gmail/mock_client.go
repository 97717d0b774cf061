package gmail

import (
	"context"
	"time"

	"draft-relay/internal/model"
)

// MockMailbox is a mock implementation of MailboxProvider for testing
type MockMailbox struct {
	ListUnseenFunc func(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error)
	SendFunc       func(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error)
	MarkReadFunc   func(ctx context.Context, cred model.Credential, sourceMessageID string) error
	RefreshFunc    func(ctx context.Context, cred model.Credential) (model.Credential, error)
}

func NewMockMailbox() *MockMailbox {
	return &MockMailbox{}
}

func (m *MockMailbox) ListUnseen(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error) {
	if m.ListUnseenFunc != nil {
		return m.ListUnseenFunc(ctx, cred, since, max)
	}

	// Default mock behavior: an empty inbox
	return &model.UnseenBatch{}, nil
}

func (m *MockMailbox) Send(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, cred, reply)
	}

	// Default mock behavior: success
	return "sent-mock", nil
}

func (m *MockMailbox) MarkRead(ctx context.Context, cred model.Credential, sourceMessageID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, cred, sourceMessageID)
	}

	// Default mock behavior: success
	return nil
}

func (m *MockMailbox) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, cred)
	}

	// Default mock behavior: extend the token by an hour
	cred.AccessToken = "refreshed-" + cred.AccessToken
	cred.Expiry = time.Now().Add(time.Hour)
	return cred, nil
}
