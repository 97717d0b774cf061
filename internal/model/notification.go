package model

type NotificationKind string

const (
	NotificationDraftCreated      NotificationKind = "draft_created"
	NotificationSent              NotificationKind = "sent"
	NotificationEdited            NotificationKind = "edited"
	NotificationRejected          NotificationKind = "rejected"
	NotificationReconnectRequired NotificationKind = "reconnect_required"
)

type Notification struct {
	Kind  NotificationKind
	Draft *Draft
	// Message carries free text for kinds without a draft.
	Message string
}
