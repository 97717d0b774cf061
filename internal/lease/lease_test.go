package lease

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
)

func TestLocalLeaseIsExclusive(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocal(fake)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "acct-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.Acquire(ctx, "acct-1", time.Minute)
	assert.False(t, ok)

	_, ok, _ = l.Acquire(ctx, "acct-2", time.Minute)
	assert.True(t, ok, "keys are independent")

	release()
	_, ok, _ = l.Acquire(ctx, "acct-1", time.Minute)
	assert.True(t, ok)
}

func TestLocalLeaseExpires(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocal(fake)
	ctx := context.Background()

	stale, ok, _ := l.Acquire(ctx, "acct-1", time.Minute)
	require.True(t, ok)

	fake.Set(fake.Now().Add(time.Minute))
	_, ok, _ = l.Acquire(ctx, "acct-1", time.Minute)
	require.True(t, ok)

	// the expired holder must not release the new hold
	stale()
	_, ok, _ = l.Acquire(ctx, "acct-1", time.Minute)
	assert.False(t, ok)
}

func TestNewRedisFromURLRejectsBadURL(t *testing.T) {
	_, _, err := NewRedisFromURL("not-a-url", logger.NewWithWriter(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestRedisReleaseFailureIsLogged(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	var buf bytes.Buffer
	l := &redisLease{client: client, logger: logger.NewWithWriter(&buf)}

	_, _, err := l.Acquire(context.Background(), "scan:acct-1", time.Minute)
	assert.Error(t, err, "unreachable redis surfaces on acquire")

	l.release("scan:acct-1", "token")
	assert.Contains(t, buf.String(), "Failed to release lease")
	assert.Contains(t, buf.String(), "scan:acct-1")
}
