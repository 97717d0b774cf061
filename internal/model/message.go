package model

import "time"

// InboundMessage is one unseen item as reported by a mailbox provider.
type InboundMessage struct {
	SourceMessageID  string    `json:"source_message_id"`
	ConversationID   string    `json:"conversation_id"`
	From             string    `json:"from"`
	Subject          string    `json:"subject"`
	Body             string    `json:"body"`
	MessageIDHeader  string    `json:"message_id_header"`
	InReplyToHeader  string    `json:"in_reply_to_header"`
	ReferencesHeader string    `json:"references_header"`
	ReceivedAt       time.Time `json:"received_at"`
}

// UnseenBatch is a page of unseen items in provider order. Total is the
// provider's count of unseen items matching the query, which may exceed len(Items).
// Failed counts items of the page whose details could not be fetched.
type UnseenBatch struct {
	Items  []*InboundMessage
	Total  int
	Failed int
}

type OutboundReply struct {
	To             string
	Subject        string
	Body           string
	ConversationID string
	InReplyTo      string
	References     []string
}
