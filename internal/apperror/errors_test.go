package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamClassifiesTimeouts(t *testing.T) {
	err := Upstream("list unseen", fmt.Errorf("call: %w", context.DeadlineExceeded))

	var upErr *UpstreamError
	assert.True(t, errors.As(err, &upErr))
	assert.True(t, upErr.Timeout)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpstreamKeepsExistingClassification(t *testing.T) {
	rl := &RateLimitedError{Op: "generate", RetryAfter: time.Second}
	assert.Same(t, rl, Upstream("generate", rl))

	auth := &AuthError{AccountID: "a1", Message: "token revoked"}
	assert.Same(t, auth, Upstream("send", auth))

	assert.Nil(t, Upstream("noop", nil))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("scan: %w", &AuthError{AccountID: "a1", Message: "expired"})
	assert.True(t, IsAuthError(wrapped))
	assert.False(t, IsTransient(wrapped))

	rl := fmt.Errorf("generate: %w", &RateLimitedError{Op: "generate"})
	assert.True(t, IsRateLimited(rl))
	assert.True(t, IsTransient(rl))

	assert.False(t, IsTransient(errors.New("plain")))
}
