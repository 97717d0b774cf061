package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"draft-relay/internal/model"
)

type draftRow struct {
	ID                  string       `db:"id"`
	AccountID           string       `db:"account_id"`
	SourceMessageID     string       `db:"source_message_id"`
	ConversationID      string       `db:"conversation_id"`
	OriginalMessageID   string       `db:"original_message_id"`
	ReferenceChain      string       `db:"reference_chain"`
	From                string       `db:"from_address"`
	Subject             string       `db:"subject"`
	OriginalText        string       `db:"original_text"`
	GeneratedText       string       `db:"generated_text"`
	EditedText          string       `db:"edited_text"`
	Status              string       `db:"status"`
	CreatedAt           time.Time    `db:"created_at"`
	ResolvedAt          sql.NullTime `db:"resolved_at"`
	DispatchedMessageID string       `db:"dispatched_message_id"`
}

const draftColumns = `id, account_id, source_message_id, conversation_id, original_message_id,
	reference_chain, from_address, subject, original_text, generated_text, edited_text,
	status, created_at, resolved_at, dispatched_message_id`

func (r draftRow) toModel() (*model.Draft, error) {
	var refs []string
	if r.ReferenceChain != "" {
		if err := json.Unmarshal([]byte(r.ReferenceChain), &refs); err != nil {
			return nil, fmt.Errorf("decoding references of draft %s: %w", r.ID, err)
		}
	}
	d := &model.Draft{
		ID:              r.ID,
		AccountID:       r.AccountID,
		SourceMessageID: r.SourceMessageID,
		ConversationID:  r.ConversationID,
		ThreadRefs: model.ThreadRefs{
			OriginalMessageID: r.OriginalMessageID,
			References:        refs,
		},
		From:                r.From,
		Subject:             r.Subject,
		OriginalText:        r.OriginalText,
		GeneratedText:       r.GeneratedText,
		EditedText:          r.EditedText,
		Status:              model.DraftStatus(r.Status),
		CreatedAt:           r.CreatedAt.UTC(),
		DispatchedMessageID: r.DispatchedMessageID,
	}
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time.UTC()
		d.ResolvedAt = &t
	}
	return d, nil
}

func draftsFromRows(rows []draftRow) ([]*model.Draft, error) {
	drafts := make([]*model.Draft, 0, len(rows))
	for _, row := range rows {
		d, err := row.toModel()
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// credentialRecord carries the secret fields that model.Credential hides from JSON.
type credentialRecord struct {
	Provider     string    `json:"provider"`
	Username     string    `json:"username"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Password     string    `json:"password,omitempty"`
	IMAPAddr     string    `json:"imap_addr,omitempty"`
	SMTPAddr     string    `json:"smtp_addr,omitempty"`
}

func encodeCredential(c model.Credential) (string, error) {
	b, err := json.Marshal(credentialRecord(c))
	if err != nil {
		return "", fmt.Errorf("encoding credential: %w", err)
	}
	return string(b), nil
}

func decodeCredential(s string) (model.Credential, error) {
	var rec credentialRecord
	if s == "" {
		return model.Credential{}, nil
	}
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return model.Credential{}, fmt.Errorf("decoding credential: %w", err)
	}
	return model.Credential(rec), nil
}

type accountRow struct {
	ID                      string       `db:"id"`
	Email                   string       `db:"email"`
	Name                    string       `db:"name"`
	Provider                string       `db:"provider"`
	Credential              string       `db:"credential"`
	AutoScanEnabled         bool         `db:"auto_scan_enabled"`
	AutoScanIntervalMinutes int          `db:"auto_scan_interval_minutes"`
	LastScanAt              sql.NullTime `db:"last_scan_at"`
	NotificationTarget      string       `db:"notification_target"`
	ReplyPreferences        string       `db:"reply_preferences"`
	NeedsReconnect          bool         `db:"needs_reconnect"`
	CreatedAt               time.Time    `db:"created_at"`
	UpdatedAt               time.Time    `db:"updated_at"`
}

const accountColumns = `id, email, name, provider, credential, auto_scan_enabled,
	auto_scan_interval_minutes, last_scan_at, notification_target, reply_preferences,
	needs_reconnect, created_at, updated_at`

func (r accountRow) toModel() (*model.Account, error) {
	cred, err := decodeCredential(r.Credential)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.ID, err)
	}
	var prefs model.ReplyPreferences
	if r.ReplyPreferences != "" {
		if err := json.Unmarshal([]byte(r.ReplyPreferences), &prefs); err != nil {
			return nil, fmt.Errorf("decoding preferences of account %s: %w", r.ID, err)
		}
	}
	a := &model.Account{
		ID:                      r.ID,
		Email:                   r.Email,
		Name:                    r.Name,
		Provider:                r.Provider,
		Credential:              cred,
		AutoScanEnabled:         r.AutoScanEnabled,
		AutoScanIntervalMinutes: r.AutoScanIntervalMinutes,
		NotificationTarget:      r.NotificationTarget,
		ReplyPreferences:        prefs,
		NeedsReconnect:          r.NeedsReconnect,
		CreatedAt:               r.CreatedAt.UTC(),
		UpdatedAt:               r.UpdatedAt.UTC(),
	}
	if r.LastScanAt.Valid {
		a.LastScanAt = r.LastScanAt.Time.UTC()
	}
	return a, nil
}

type emailLogRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	DraftID   string    `db:"draft_id"`
	Action    string    `db:"action"`
	Provider  string    `db:"provider"`
	Details   string    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

func (r emailLogRow) toModel() (*model.EmailLog, error) {
	var details map[string]interface{}
	if r.Details != "" && r.Details != "null" {
		if err := json.Unmarshal([]byte(r.Details), &details); err != nil {
			return nil, fmt.Errorf("decoding details of log %s: %w", r.ID, err)
		}
	}
	return &model.EmailLog{
		ID:        r.ID,
		AccountID: r.AccountID,
		DraftID:   r.DraftID,
		Action:    model.EmailLogAction(r.Action),
		Provider:  r.Provider,
		Details:   details,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}
