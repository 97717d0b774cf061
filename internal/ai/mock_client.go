package ai

import (
	"context"
	"strings"

	"draft-relay/internal/model"
)

// MockAIClient is a mock implementation of AIClient for testing
type MockAIClient struct {
	GenerateReplyFunc func(ctx context.Context, originalText string, prefs model.ReplyPreferences) (string, error)
}

func NewMockAIClient() *MockAIClient {
	return &MockAIClient{}
}

func (m *MockAIClient) GenerateReply(ctx context.Context, originalText string, prefs model.ReplyPreferences) (string, error) {
	if m.GenerateReplyFunc != nil {
		return m.GenerateReplyFunc(ctx, originalText, prefs)
	}

	// Default mock behavior: echo the first line as a reply
	firstLine := strings.SplitN(strings.TrimSpace(originalText), "\n", 2)[0]
	return "Thanks for your message about: " + firstLine + "\n\n" + prefs.SignOff, nil
}
