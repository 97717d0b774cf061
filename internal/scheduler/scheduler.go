package scheduler

import (
	"context"
	"sync"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/lease"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
)

// AccountLister is the slice of the account store the scheduler needs.
type AccountLister interface {
	FindAll(ctx context.Context) ([]*model.Account, error)
	UpdateLastScanAt(ctx context.Context, id string, at time.Time) error
}

type Options struct {
	Tick     time.Duration
	Lookback time.Duration
	MaxItems int
}

// Scheduler runs auto-scans for every account whose interval has elapsed.
type Scheduler struct {
	clock    clock.Clock
	accounts AccountLister
	scans    service.ScanService
	lease    lease.Lease
	opts     Options
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	runMu   sync.Mutex
	running map[string]bool
	scansWG sync.WaitGroup
}

func NewScheduler(
	clk clock.Clock,
	accounts AccountLister,
	scans service.ScanService,
	l lease.Lease,
	opts Options,
	logger *logger.Logger,
) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = time.Minute
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 3
	}
	return &Scheduler{
		clock:    clk,
		accounts: accounts,
		scans:    scans,
		lease:    l,
		opts:     opts,
		logger:   logger,
		running:  make(map[string]bool),
	}
}

// RunTick starts a scan for every due account that is not already being
// scanned by this process. It returns without waiting for the scans.
func (s *Scheduler) RunTick(ctx context.Context) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list accounts for auto-scan:", err)
		return
	}

	now := s.clock.Now()
	for _, account := range accounts {
		if !account.ScanDue(now) || !s.begin(account.ID) {
			continue
		}
		s.scansWG.Add(1)
		go func(account *model.Account) {
			defer s.scansWG.Done()
			defer s.finish(account.ID)
			s.scanAccount(ctx, account, now)
		}(account)
	}
}

// Wait blocks until every scan started so far has returned.
func (s *Scheduler) Wait() {
	s.scansWG.Wait()
}

func (s *Scheduler) begin(accountID string) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running[accountID] {
		return false
	}
	s.running[accountID] = true
	return true
}

func (s *Scheduler) finish(accountID string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	delete(s.running, accountID)
}

func (s *Scheduler) scanAccount(ctx context.Context, account *model.Account, now time.Time) {
	log := s.logger.WithField("account_id", account.ID)

	release, ok, err := s.lease.Acquire(ctx, "scan:"+account.ID, account.ScanInterval())
	switch {
	case err != nil:
		log.Error("Failed to acquire scan lease, skipping this interval:", err)
	case !ok:
		log.Debug("Scan already running elsewhere, skipping")
		return
	default:
		s.runScan(ctx, log, account)
		release()
	}

	// advance even on failure so a broken account does not rescan every tick
	if err := s.accounts.UpdateLastScanAt(context.WithoutCancel(ctx), account.ID, now); err != nil {
		log.Error("Failed to update last scan time:", err)
	}
}

func (s *Scheduler) runScan(ctx context.Context, log *logger.Logger, account *model.Account) {
	result, err := s.scans.Scan(ctx, account.ID, s.opts.Lookback, s.opts.MaxItems)
	switch {
	case apperror.IsAuthError(err):
		log.Warn("Auto-scan stopped, mailbox reconnect required:", err)
	case err != nil:
		log.Error("Auto-scan failed:", err)
	default:
		log.Info("Auto-scan created", len(result.Created), "drafts, skipped", result.Skipped, "errors", result.Errors)
	}
}

// Start runs a tick immediately and then on every clock tick until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Starting auto-scan scheduler with tick:", s.opts.Tick.String())
	ticker := s.clock.NewTicker(s.opts.Tick)

	go func() {
		defer close(done)
		defer ticker.Stop()

		s.RunTick(ctx)
		for {
			select {
			case <-ticker.C():
				s.RunTick(ctx)
			case <-ctx.Done():
				s.logger.Info("Auto-scan scheduler stopped")
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight scans to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.Wait()
}
