package model

import (
	"time"

	"github.com/google/uuid"
)

type EmailLogAction string

const (
	EmailLogReceived     EmailLogAction = "received"
	EmailLogDraftCreated EmailLogAction = "draft_created"
	EmailLogApproved     EmailLogAction = "approved"
	EmailLogRejected     EmailLogAction = "rejected"
	EmailLogEdited       EmailLogAction = "edited"
	EmailLogSent         EmailLogAction = "sent"
)

type EmailLog struct {
	ID        string                 `json:"id"`
	AccountID string                 `json:"account_id"`
	DraftID   string                 `json:"draft_id,omitempty"`
	Action    EmailLogAction         `json:"action"`
	Provider  string                 `json:"provider"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewEmailLog(accountID, draftID string, action EmailLogAction, provider string, details map[string]interface{}) *EmailLog {
	return &EmailLog{
		ID:        uuid.New().String(),
		AccountID: accountID,
		DraftID:   draftID,
		Action:    action,
		Provider:  provider,
		Details:   details,
		CreatedAt: time.Now(),
	}
}
