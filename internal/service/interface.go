package service

import (
	"context"
	"time"

	"draft-relay/internal/model"
)

// MailboxProvider is the mail source and sink for one provider kind.
// Every call carries the credential value explicitly.
type MailboxProvider interface {
	// ListUnseen returns unseen items received after since, in provider order, capped at max.
	ListUnseen(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error)
	// Send delivers a reply and returns the provider's id for the sent message.
	Send(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error)
	MarkRead(ctx context.Context, cred model.Credential, sourceMessageID string) error
	// Refresh exchanges the refresh token for a new credential value.
	Refresh(ctx context.Context, cred model.Credential) (model.Credential, error)
}

// AIClient interface for the reply generation service
type AIClient interface {
	GenerateReply(ctx context.Context, originalText string, prefs model.ReplyPreferences) (string, error)
}

// GenerationGateway fronts the AIClient. Calls made through one batch are
// spaced by the configured minimum interval; separate batches are independent.
type GenerationGateway interface {
	Generate(ctx context.Context, accountID, originalText string, prefs model.ReplyPreferences) (string, error)
	NewBatch() GenerationBatch
}

type GenerationBatch interface {
	Generate(ctx context.Context, accountID, originalText string, prefs model.ReplyPreferences) (string, error)
}

// NotificationGateway delivers announcements and confirmations to the account owner.
type NotificationGateway interface {
	Announce(ctx context.Context, target string, notification *model.Notification) (string, error)
}

// EventPublisher pushes dashboard events to connected clients of an account.
type EventPublisher interface {
	Publish(accountID, eventType string, data interface{})
}

type CredentialService interface {
	// Valid returns a credential usable now, refreshing and persisting it when
	// it expires within the buffer. Failures are reported as *apperror.AuthError.
	Valid(ctx context.Context, account *model.Account) (model.Credential, error)
	// Invalidate flags the account for reconnection and tells its owner.
	Invalidate(ctx context.Context, account *model.Account, cause error)
}

type ScanResult struct {
	Created       []string `json:"created"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	TotalFound    int      `json:"total_found"`
	Processed     int      `json:"processed"`
	Remaining     int      `json:"remaining"`
	MoreAvailable bool     `json:"more_available"`
	Note          string   `json:"note,omitempty"`
}

type ScanService interface {
	Scan(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*ScanResult, error)
}

type CommandResult struct {
	OK     bool              `json:"ok"`
	Status model.DraftStatus `json:"status"`
	Draft  *model.Draft      `json:"draft,omitempty"`
}

type CommandService interface {
	Apply(ctx context.Context, draftID, accountID string, cmd model.Command) (*CommandResult, error)
	// HandleInbound interprets free text from the notification channel.
	// Nothing is reported back to the channel.
	HandleInbound(ctx context.Context, from, body string)
}

type DraftService interface {
	GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error)
	ListDrafts(ctx context.Context, accountID string, status *model.DraftStatus, period string) ([]*model.Draft, error)
	ListPending(ctx context.Context, accountID string) ([]*model.Draft, error)
	GetStats(ctx context.Context, accountID string) (*model.Stats, error)
	GetLogs(ctx context.Context, accountID string, limit int) ([]*model.EmailLog, error)
}

type AccountSettings struct {
	AutoScanEnabled         bool                   `json:"auto_scan_enabled"`
	AutoScanIntervalMinutes int                    `json:"auto_scan_interval_minutes" validate:"min=1,max=60"`
	NotificationTarget      string                 `json:"notification_target" validate:"omitempty,max=64"`
	ReplyPreferences        model.ReplyPreferences `json:"reply_preferences"`
}

type AccountService interface {
	// ConnectGmail creates or refreshes the account behind a Google sign-in.
	ConnectGmail(ctx context.Context, email, name, accessToken, refreshToken string, expiry time.Time) (*model.Account, error)
	// Register upserts an account and applies its settings, used for seeded IMAP accounts.
	Register(ctx context.Context, account *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, accountID string) (*model.Account, error)
	UpdateSettings(ctx context.Context, accountID string, settings AccountSettings) (*model.Account, error)
}
