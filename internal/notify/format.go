// Package notify delivers draft announcements and confirmations to the
// account owner over the configured channel.
package notify

import (
	"fmt"
	"strings"

	"draft-relay/internal/model"
)

const (
	previewLength = 150
	shortIDLength = 8
)

// ShortID is the draft reference printed in command hints. Any unique
// prefix of the full id is accepted back.
func ShortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// Format renders a notification as a subject line and a plain text body.
func Format(n *model.Notification) (string, string) {
	switch n.Kind {
	case model.NotificationDraftCreated:
		return formatDraft(n.Draft)
	case model.NotificationSent:
		return "Reply sent", fmt.Sprintf("Email sent to %s.\nID: %s", n.Draft.From, n.Draft.ID)
	case model.NotificationEdited:
		return "Edited reply sent", fmt.Sprintf("Draft updated and sent to %s.\nID: %s", n.Draft.From, n.Draft.ID)
	case model.NotificationRejected:
		return "Draft rejected", fmt.Sprintf("Draft rejected. Nothing was sent.\nID: %s", n.Draft.ID)
	case model.NotificationReconnectRequired:
		return "Mailbox reconnect required", n.Message
	}
	return string(n.Kind), n.Message
}

func formatDraft(d *model.Draft) (string, string) {
	short := ShortID(d.ID)

	var b strings.Builder
	b.WriteString("New email draft\n\n")
	fmt.Fprintf(&b, "From: %s\n", d.From)
	fmt.Fprintf(&b, "Subject: %s\n\n", d.Subject)
	fmt.Fprintf(&b, "Original:\n%s\n\n", preview(d.OriginalText))
	fmt.Fprintf(&b, "Proposed reply:\n%s\n\n", d.GeneratedText)
	b.WriteString("Reply with:\n")
	fmt.Fprintf(&b, "approve %s\n", short)
	fmt.Fprintf(&b, "edit %s <text>\n", short)
	fmt.Fprintf(&b, "reject %s\n\n", short)
	fmt.Fprintf(&b, "ID: %s", d.ID)
	return "Draft ready: " + d.Subject, b.String()
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength]) + "..."
}
