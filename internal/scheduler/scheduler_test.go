package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/lease"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/repository/memory"
	"draft-relay/internal/service"
)

type scanFunc func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error)

func (f scanFunc) Scan(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
	return f(ctx, accountID, lookback, maxItems)
}

var start = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *memory.InMemoryAccountRepository, email string, enabled bool, lastScan time.Time) *model.Account {
	t.Helper()
	account := model.NewAccount(email, "Owner", model.ProviderGmail, model.Credential{AccessToken: "t"})
	account.AutoScanEnabled = enabled
	account.AutoScanIntervalMinutes = 5
	account.LastScanAt = lastScan
	require.NoError(t, repo.Create(context.Background(), account))
	return account
}

func newScheduler(repo *memory.InMemoryAccountRepository, fake *clock.Fake, scans service.ScanService) *Scheduler {
	return NewScheduler(fake, repo, scans, lease.NewLocal(fake), Options{}, logger.NewWithWriter(&bytes.Buffer{}))
}

// runTick dispatches one tick and waits for the scans it started.
func runTick(s *Scheduler) {
	s.RunTick(context.Background())
	s.Wait()
}

func TestRunTickScansAccountsIndependently(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	slow := seed(t, repo, "slow@example.com", true, time.Time{})
	fast := seed(t, repo, "fast@example.com", true, time.Time{})

	fastDone := make(chan struct{})
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		assert.Equal(t, 24*time.Hour, lookback)
		assert.Equal(t, 3, maxItems)
		if accountID == slow.ID {
			// only completes if the other account's scan ran concurrently
			select {
			case <-fastDone:
			case <-time.After(5 * time.Second):
				return nil, errors.New("fast account was blocked")
			}
			return nil, errors.New("slow mailbox failed")
		}
		close(fastDone)
		return &service.ScanResult{Created: []string{"d1"}}, nil
	})

	runTick(newScheduler(repo, fake, scans))

	for _, id := range []string{slow.ID, fast.ID} {
		account, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, start, account.LastScanAt, "last scan advances even on failure")
	}
}

func TestRunTickSkipsAccountsNotDue(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	disabled := seed(t, repo, "off@example.com", false, time.Time{})
	recent := seed(t, repo, "recent@example.com", true, start.Add(-2*time.Minute))
	due := seed(t, repo, "due@example.com", true, start.Add(-5*time.Minute))

	var mu sync.Mutex
	var scanned []string
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		mu.Lock()
		scanned = append(scanned, accountID)
		mu.Unlock()
		return &service.ScanResult{}, nil
	})

	runTick(newScheduler(repo, fake, scans))

	assert.Equal(t, []string{due.ID}, scanned)
	got, _ := repo.FindByID(context.Background(), recent.ID)
	assert.Equal(t, start.Add(-2*time.Minute), got.LastScanAt)
	got, _ = repo.FindByID(context.Background(), disabled.ID)
	assert.True(t, got.LastScanAt.IsZero())
}

func TestRunTickAuthErrorStillAdvances(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	account := seed(t, repo, "revoked@example.com", true, time.Time{})

	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		return nil, &apperror.AuthError{AccountID: accountID, Message: "revoked"}
	})

	runTick(newScheduler(repo, fake, scans))

	got, _ := repo.FindByID(context.Background(), account.ID)
	assert.Equal(t, start, got.LastScanAt)
}

func TestRunTickSkipsWhenLeaseHeld(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	account := seed(t, repo, "busy@example.com", true, time.Time{})

	l := lease.NewLocal(fake)
	_, ok, err := l.Acquire(context.Background(), "scan:"+account.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		called = true
		return &service.ScanResult{}, nil
	})

	runTick(NewScheduler(fake, repo, scans, l, Options{}, logger.NewWithWriter(&bytes.Buffer{})))
	assert.False(t, called)
}

func TestStartRunsOnTicks(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	seed(t, repo, "ticks@example.com", true, time.Time{})

	calls := make(chan struct{}, 10)
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		calls <- struct{}{}
		return &service.ScanResult{}, nil
	})

	s := newScheduler(repo, fake, scans)
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("initial tick did not scan")
	}

	// next due after the 5 minute interval
	assert.Eventually(t, func() bool {
		fake.Advance(time.Minute)
		select {
		case <-calls:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

type failingLease struct{}

func (failingLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return nil, false, errors.New("redis: connection refused")
}

func TestRunTickLeaseFailureStillAdvances(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	account := seed(t, repo, "nolease@example.com", true, time.Time{})

	called := false
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		called = true
		return &service.ScanResult{}, nil
	})

	runTick(NewScheduler(fake, repo, scans, failingLease{}, Options{}, logger.NewWithWriter(&bytes.Buffer{})))

	assert.False(t, called)
	got, _ := repo.FindByID(context.Background(), account.ID)
	assert.Equal(t, start, got.LastScanAt)
}

func TestSlowAccountDoesNotStallOthers(t *testing.T) {
	fake := clock.NewFake(start)
	repo := memory.NewInMemoryAccountRepository()
	slow := seed(t, repo, "slow@example.com", true, time.Time{})
	seed(t, repo, "fast@example.com", true, time.Time{})

	unblock := make(chan struct{})
	var slowCalls, fastCalls int32
	scans := scanFunc(func(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*service.ScanResult, error) {
		if accountID == slow.ID {
			atomic.AddInt32(&slowCalls, 1)
			select {
			case <-unblock:
			case <-ctx.Done():
			}
			return &service.ScanResult{}, nil
		}
		atomic.AddInt32(&fastCalls, 1)
		return &service.ScanResult{}, nil
	})

	s := newScheduler(repo, fake, scans)
	s.Start(context.Background())

	// fast is due every 5 minutes while slow never returns
	assert.Eventually(t, func() bool {
		fake.Advance(time.Minute)
		return atomic.LoadInt32(&fastCalls) >= 3
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&slowCalls), "a running account is not started again")

	close(unblock)
	s.Stop()
}
