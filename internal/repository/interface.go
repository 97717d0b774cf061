package repository

import (
	"context"
	"time"

	"draft-relay/internal/model"
)

// DraftRepository is the draft store. CreateIfAbsent and
// TransitionUnlessTerminal are atomic at the store level.
type DraftRepository interface {
	// CreateIfAbsent reserves (accountID, sourceMessageID) for the caller.
	// It returns false when a draft already exists for the key or another
	// scan holds a live claim on it.
	CreateIfAbsent(ctx context.Context, accountID, sourceMessageID string) (bool, error)
	// Finalize persists a fully built draft under a claim held by the caller.
	Finalize(ctx context.Context, draft *model.Draft) error
	// Release drops an unfinalized claim so a later scan can retry the item.
	Release(ctx context.Context, accountID, sourceMessageID string) error

	FindByID(ctx context.Context, id string) (*model.Draft, error)
	FindByIDPrefix(ctx context.Context, accountID, prefix string) ([]*model.Draft, error)
	FindByAccount(ctx context.Context, filter model.DraftFilter) ([]*model.Draft, error)

	// SetEditedText stores edited text while the draft is still pending.
	SetEditedText(ctx context.Context, id, text string) (*model.Draft, error)
	// TransitionUnlessTerminal moves a pending draft to a terminal status.
	// applied is false when the draft was already terminal; the returned
	// draft then carries its current state.
	TransitionUnlessTerminal(ctx context.Context, id string, transition model.DraftTransition) (draft *model.Draft, applied bool, err error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	// Upsert creates the account or refreshes identity and credential fields
	// of the existing account with the same email. It returns the stored account.
	Upsert(ctx context.Context, account *model.Account) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	FindByNotificationTarget(ctx context.Context, target string) (*model.Account, error)
	FindAll(ctx context.Context) ([]*model.Account, error)
	UpdateSettings(ctx context.Context, account *model.Account) error
	UpdateLastScanAt(ctx context.Context, id string, at time.Time) error
	// UpdateCredential stores a new credential value and clears NeedsReconnect.
	UpdateCredential(ctx context.Context, id string, cred model.Credential) error
	MarkReconnectRequired(ctx context.Context, id string) error
}

type EmailLogRepository interface {
	Create(ctx context.Context, log *model.EmailLog) error
	FindByAccount(ctx context.Context, accountID string, limit int) ([]*model.EmailLog, error)
}
