package service

// Dashboard event types published per account.
const (
	EventDraftCreated      = "draft_created"
	EventDraftResolved     = "draft_resolved"
	EventScanCompleted     = "scan_completed"
	EventReconnectRequired = "reconnect_required"
)
