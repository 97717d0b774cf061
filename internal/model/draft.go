package model

import (
	"time"

	"github.com/google/uuid"
)

type DraftStatus string

const (
	DraftStatusPending  DraftStatus = "pending"
	DraftStatusSent     DraftStatus = "sent"
	DraftStatusEdited   DraftStatus = "edited"
	DraftStatusRejected DraftStatus = "rejected"
)

// IsTerminal reports whether no further transition is accepted from s.
func (s DraftStatus) IsTerminal() bool {
	switch s {
	case DraftStatusSent, DraftStatusEdited, DraftStatusRejected:
		return true
	}
	return false
}

func (s DraftStatus) Valid() bool {
	return s == DraftStatusPending || s.IsTerminal()
}

// ThreadRefs is captured from the inbound item when the draft is created
// and never changes afterwards.
type ThreadRefs struct {
	OriginalMessageID string   `json:"original_message_id"`
	References        []string `json:"references"`
}

type Draft struct {
	ID                  string      `json:"id"`
	AccountID           string      `json:"account_id"`
	SourceMessageID     string      `json:"source_message_id"`
	ConversationID      string      `json:"conversation_id"`
	ThreadRefs          ThreadRefs  `json:"thread_refs"`
	From                string      `json:"from"`
	Subject             string      `json:"subject"`
	OriginalText        string      `json:"original_text"`
	GeneratedText       string      `json:"generated_text"`
	EditedText          string      `json:"edited_text,omitempty"`
	Status              DraftStatus `json:"status"`
	CreatedAt           time.Time   `json:"created_at"`
	ResolvedAt          *time.Time  `json:"resolved_at,omitempty"`
	DispatchedMessageID string      `json:"dispatched_message_id,omitempty"`
}

func NewDraft(accountID, sourceMessageID, conversationID string, refs ThreadRefs, from, subject, originalText, generatedText string, createdAt time.Time) *Draft {
	return &Draft{
		ID:              uuid.New().String(),
		AccountID:       accountID,
		SourceMessageID: sourceMessageID,
		ConversationID:  conversationID,
		ThreadRefs:      refs,
		From:            from,
		Subject:         subject,
		OriginalText:    originalText,
		GeneratedText:   generatedText,
		Status:          DraftStatusPending,
		CreatedAt:       createdAt,
	}
}

// ReplyBody is the text that goes out for the draft's terminal status.
func (d *Draft) ReplyBody() string {
	if d.Status == DraftStatusEdited || (d.Status == DraftStatusPending && d.EditedText != "") {
		return d.EditedText
	}
	return d.GeneratedText
}

// DraftTransition describes a compare-and-set move out of Pending.
type DraftTransition struct {
	Status              DraftStatus
	ResolvedAt          time.Time
	DispatchedMessageID string
}

// DraftFilter narrows a listing. Nil fields are not applied.
type DraftFilter struct {
	AccountID string
	Status    *DraftStatus
	Since     *time.Time
}
