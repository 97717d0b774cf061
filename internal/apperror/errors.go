package apperror

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidState is returned when a command targets a draft owned by another account.
	ErrInvalidState = errors.New("invalid draft state")
)

// RateLimitedError reports that an upstream refused the call because of its request ceiling.
type RateLimitedError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Op, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Op)
}

// UpstreamError wraps a timeout or server-side failure of an external collaborator.
type UpstreamError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: upstream timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream error: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AuthError indicates that the mailbox credential for an account is no longer usable.
type AuthError struct {
	AccountID string
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (account %s): %s", e.AccountID, e.Message)
}

// Upstream wraps err as an UpstreamError, flagging deadline overruns as timeouts.
// Errors that already carry a classification are returned unchanged.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsRateLimited(err) || IsAuthError(err) {
		return err
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return err
	}
	return &UpstreamError{
		Op:      op,
		Err:     err,
		Timeout: errors.Is(err, context.DeadlineExceeded),
	}
}

func IsRateLimited(err error) bool {
	var rlErr *RateLimitedError
	return errors.As(err, &rlErr)
}

func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err should be retried on the next scheduled opportunity.
func IsTransient(err error) bool {
	if IsRateLimited(err) {
		return true
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
