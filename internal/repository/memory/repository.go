package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/model"
)

type claimKey struct {
	accountID       string
	sourceMessageID string
}

type claim struct {
	claimedAt time.Time
	finalized bool
}

type InMemoryDraftRepository struct {
	drafts   map[string]*model.Draft
	claims   map[claimKey]*claim
	claimTTL time.Duration
	now      func() time.Time
	mutex    sync.RWMutex
}

func NewInMemoryDraftRepository(claimTTL time.Duration) *InMemoryDraftRepository {
	return &InMemoryDraftRepository{
		drafts:   make(map[string]*model.Draft),
		claims:   make(map[claimKey]*claim),
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

func (r *InMemoryDraftRepository) CreateIfAbsent(ctx context.Context, accountID, sourceMessageID string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := claimKey{accountID, sourceMessageID}
	now := r.now()
	if c, exists := r.claims[key]; exists {
		if c.finalized || now.Sub(c.claimedAt) < r.claimTTL {
			return false, nil
		}
	}
	r.claims[key] = &claim{claimedAt: now}
	return true, nil
}

func (r *InMemoryDraftRepository) Finalize(ctx context.Context, draft *model.Draft) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := claimKey{draft.AccountID, draft.SourceMessageID}
	c, exists := r.claims[key]
	if !exists || c.finalized {
		return apperror.ErrInvalidState
	}
	c.finalized = true
	r.drafts[draft.ID] = copyDraft(draft)
	return nil
}

func (r *InMemoryDraftRepository) Release(ctx context.Context, accountID, sourceMessageID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := claimKey{accountID, sourceMessageID}
	if c, exists := r.claims[key]; exists && !c.finalized {
		delete(r.claims, key)
	}
	return nil
}

func (r *InMemoryDraftRepository) FindByID(ctx context.Context, id string) (*model.Draft, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	draft, exists := r.drafts[id]
	if !exists {
		return nil, apperror.ErrDraftNotFound
	}
	return copyDraft(draft), nil
}

func (r *InMemoryDraftRepository) FindByIDPrefix(ctx context.Context, accountID, prefix string) ([]*model.Draft, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matches []*model.Draft
	for id, draft := range r.drafts {
		if draft.AccountID == accountID && strings.HasPrefix(id, prefix) {
			matches = append(matches, copyDraft(draft))
			if len(matches) == 2 {
				break
			}
		}
	}
	return matches, nil
}

func (r *InMemoryDraftRepository) FindByAccount(ctx context.Context, filter model.DraftFilter) ([]*model.Draft, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var drafts []*model.Draft
	for _, draft := range r.drafts {
		if draft.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != nil && draft.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && draft.CreatedAt.Before(*filter.Since) {
			continue
		}
		drafts = append(drafts, copyDraft(draft))
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})
	return drafts, nil
}

func (r *InMemoryDraftRepository) SetEditedText(ctx context.Context, id, text string) (*model.Draft, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	draft, exists := r.drafts[id]
	if !exists {
		return nil, apperror.ErrDraftNotFound
	}
	if draft.Status == model.DraftStatusPending {
		draft.EditedText = text
	}
	return copyDraft(draft), nil
}

func (r *InMemoryDraftRepository) TransitionUnlessTerminal(ctx context.Context, id string, transition model.DraftTransition) (*model.Draft, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	draft, exists := r.drafts[id]
	if !exists {
		return nil, false, apperror.ErrDraftNotFound
	}
	if draft.Status.IsTerminal() {
		return copyDraft(draft), false, nil
	}
	resolvedAt := transition.ResolvedAt
	draft.Status = transition.Status
	draft.ResolvedAt = &resolvedAt
	draft.DispatchedMessageID = transition.DispatchedMessageID
	return copyDraft(draft), true, nil
}

func copyDraft(d *model.Draft) *model.Draft {
	c := *d
	c.ThreadRefs.References = append([]string(nil), d.ThreadRefs.References...)
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

type InMemoryAccountRepository struct {
	accounts map[string]*model.Account
	mutex    sync.RWMutex
}

func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[string]*model.Account),
	}
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, account *model.Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c := *account
	r.accounts[account.ID] = &c
	return nil
}

func (r *InMemoryAccountRepository) Upsert(ctx context.Context, account *model.Account) (*model.Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			existing.Name = account.Name
			existing.Provider = account.Provider
			existing.Credential = account.Credential
			existing.NeedsReconnect = false
			existing.UpdatedAt = time.Now()
			c := *existing
			return &c, nil
		}
	}
	c := *account
	r.accounts[account.ID] = &c
	out := c
	return &out, nil
}

func (r *InMemoryAccountRepository) FindByID(ctx context.Context, id string) (*model.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, apperror.ErrAccountNotFound
	}
	c := *account
	return &c, nil
}

func (r *InMemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findFirst(func(a *model.Account) bool { return a.Email == email })
}

func (r *InMemoryAccountRepository) FindByNotificationTarget(ctx context.Context, target string) (*model.Account, error) {
	return r.findFirst(func(a *model.Account) bool {
		return a.NotificationTarget != "" && a.NotificationTarget == target
	})
}

func (r *InMemoryAccountRepository) findFirst(match func(*model.Account) bool) (*model.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, account := range r.accounts {
		if match(account) {
			c := *account
			return &c, nil
		}
	}
	return nil, apperror.ErrAccountNotFound
}

func (r *InMemoryAccountRepository) FindAll(ctx context.Context) ([]*model.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	accounts := make([]*model.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		c := *account
		accounts = append(accounts, &c)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *InMemoryAccountRepository) UpdateSettings(ctx context.Context, account *model.Account) error {
	return r.update(account.ID, func(a *model.Account) {
		a.AutoScanEnabled = account.AutoScanEnabled
		a.AutoScanIntervalMinutes = account.AutoScanIntervalMinutes
		a.NotificationTarget = account.NotificationTarget
		a.ReplyPreferences = account.ReplyPreferences
	})
}

func (r *InMemoryAccountRepository) UpdateLastScanAt(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(a *model.Account) { a.LastScanAt = at })
}

func (r *InMemoryAccountRepository) UpdateCredential(ctx context.Context, id string, cred model.Credential) error {
	return r.update(id, func(a *model.Account) {
		a.Credential = cred
		a.NeedsReconnect = false
	})
}

func (r *InMemoryAccountRepository) MarkReconnectRequired(ctx context.Context, id string) error {
	return r.update(id, func(a *model.Account) { a.NeedsReconnect = true })
}

func (r *InMemoryAccountRepository) update(id string, apply func(*model.Account)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return apperror.ErrAccountNotFound
	}
	apply(account)
	account.UpdatedAt = time.Now()
	return nil
}

type InMemoryEmailLogRepository struct {
	logs  []*model.EmailLog
	mutex sync.RWMutex
}

func NewInMemoryEmailLogRepository() *InMemoryEmailLogRepository {
	return &InMemoryEmailLogRepository{}
}

func (r *InMemoryEmailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.logs = append(r.logs, log)
	return nil
}

// FindByAccount returns the newest entries first.
func (r *InMemoryEmailLogRepository) FindByAccount(ctx context.Context, accountID string, limit int) ([]*model.EmailLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var logs []*model.EmailLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].AccountID != accountID {
			continue
		}
		logs = append(logs, r.logs[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}
