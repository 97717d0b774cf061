// Package lease provides short-lived named locks so that only one worker
// scans a given account at a time.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
)

// Lease hands out exclusive, expiring holds on a key.
type Lease interface {
	// Acquire returns a release func when the key was free. ok is false when
	// another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type local struct {
	mu     sync.Mutex
	clock  clock.Clock
	holder map[string]localHold
}

type localHold struct {
	token   string
	expires time.Time
}

// NewLocal returns an in-process lease.
func NewLocal(clk clock.Clock) Lease {
	return &local{clock: clk, holder: make(map[string]localHold)}
}

func (l *local) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if h, held := l.holder[key]; held && now.Before(h.expires) {
		return nil, false, nil
	}
	token := uuid.New().String()
	l.holder[key] = localHold{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, held := l.holder[key]; held && h.token == token {
			delete(l.holder, key)
		}
	}, true, nil
}

const keyPrefix = "draft-relay:lease:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLease struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedis returns a lease shared by every replica using the same Redis.
func NewRedis(client *redis.Client, logger *logger.Logger) Lease {
	return &redisLease{client: client, logger: logger}
}

// NewRedisFromURL parses a redis:// URL and returns the client with its lease.
func NewRedisFromURL(url string, logger *logger.Logger) (*redis.Client, Lease, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return client, NewRedis(client, logger), nil
}

func (r *redisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { r.release(key, token) }, true, nil
}

// release drops the hold if it is still ours. A failure leaves the key to expire.
func (r *redisLease) release(key, token string) {
	if err := releaseScript.Run(context.Background(), r.client, []string{keyPrefix + key}, token).Err(); err != nil {
		r.logger.Warn("Failed to release lease", key, err)
	}
}
