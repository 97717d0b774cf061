package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"

	MinAutoScanIntervalMinutes = 1
	MaxAutoScanIntervalMinutes = 60
)

// ReplyPreferences is passed through to the generation service untouched.
type ReplyPreferences struct {
	Tone      string `json:"tone,omitempty" toml:"tone" validate:"max=64"`
	SignOff   string `json:"sign_off,omitempty" toml:"sign_off" validate:"max=128"`
	Signature string `json:"signature,omitempty" toml:"signature" validate:"max=1024"`
	Name      string `json:"name,omitempty" toml:"name" validate:"max=128"`
	Context   string `json:"context,omitempty" toml:"context" validate:"omitempty,oneof=general collaboration peer-review conference grant supervision department"`
}

// Credential is the per-account mailbox credential. It is passed by value
// into every mailbox call; a refresh yields a new value for the caller to store.
type Credential struct {
	Provider     string    `json:"provider"`
	Username     string    `json:"username"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Expiry       time.Time `json:"expiry"`
	Password     string    `json:"-"`
	IMAPAddr     string    `json:"imap_addr,omitempty"`
	SMTPAddr     string    `json:"smtp_addr,omitempty"`
}

// ExpiresWithin reports whether the credential expires before now+buffer.
// Credentials without an expiry never expire.
func (c Credential) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(buffer).Before(c.Expiry)
}

type Account struct {
	ID                      string           `json:"id"`
	Email                   string           `json:"email"`
	Name                    string           `json:"name"`
	Provider                string           `json:"provider"`
	Credential              Credential       `json:"-"`
	AutoScanEnabled         bool             `json:"auto_scan_enabled"`
	AutoScanIntervalMinutes int              `json:"auto_scan_interval_minutes"`
	LastScanAt              time.Time        `json:"last_scan_at"`
	NotificationTarget      string           `json:"notification_target"`
	ReplyPreferences        ReplyPreferences `json:"reply_preferences"`
	NeedsReconnect          bool             `json:"needs_reconnect"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

func NewAccount(email, name, provider string, cred Credential) *Account {
	now := time.Now()
	cred.Provider = provider
	return &Account{
		ID:                      uuid.New().String(),
		Email:                   email,
		Name:                    name,
		Provider:                provider,
		Credential:              cred,
		AutoScanIntervalMinutes: 5,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// ScanInterval clamps the configured interval into the accepted range.
func (a *Account) ScanInterval() time.Duration {
	minutes := a.AutoScanIntervalMinutes
	if minutes < MinAutoScanIntervalMinutes {
		minutes = MinAutoScanIntervalMinutes
	}
	if minutes > MaxAutoScanIntervalMinutes {
		minutes = MaxAutoScanIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// ScanDue reports whether an auto-scan should run at now.
func (a *Account) ScanDue(now time.Time) bool {
	if !a.AutoScanEnabled {
		return false
	}
	if a.LastScanAt.IsZero() {
		return true
	}
	return now.Sub(a.LastScanAt) >= a.ScanInterval()
}
