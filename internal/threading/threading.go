// Package threading carries reply-threading identifiers from inbound
// items to outbound sends.
package threading

import (
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	"draft-relay/internal/model"
)

const replyMarker = "Re: "

var angleAddr = regexp.MustCompile(`<([^>]+)>`)

// ReplyHeaders are the identifiers an outbound reply needs to land in the original thread.
type ReplyHeaders struct {
	ConversationID string
	InReplyTo      string
	References     []string
}

// Resolve captures the thread references of an inbound item.
func Resolve(msg *model.InboundMessage) model.ThreadRefs {
	refs := ParseReferences(msg.ReferencesHeader)
	if len(refs) == 0 {
		refs = ParseReferences(msg.InReplyToHeader)
	}
	return model.ThreadRefs{
		OriginalMessageID: strings.TrimSpace(msg.MessageIDHeader),
		References:        refs,
	}
}

// BuildReplyRefs derives the outbound headers for a draft. InReplyTo is the
// original header value as received; the reference chain gets its
// bracketed form appended unless already present.
func BuildReplyRefs(d *model.Draft) ReplyHeaders {
	original := d.ThreadRefs.OriginalMessageID
	refs := make([]string, 0, len(d.ThreadRefs.References)+1)
	refs = append(refs, d.ThreadRefs.References...)
	if id := normalizeID(original); id != "" && !contains(refs, id) {
		refs = append(refs, id)
	}
	return ReplyHeaders{
		ConversationID: d.ConversationID,
		InReplyTo:      original,
		References:     refs,
	}
}

// BuildReply assembles the outbound reply for a draft with the given body.
func BuildReply(d *model.Draft, body string) *model.OutboundReply {
	headers := BuildReplyRefs(d)
	return &model.OutboundReply{
		To:             d.From,
		Subject:        ReplySubject(d.Subject),
		Body:           body,
		ConversationID: headers.ConversationID,
		InReplyTo:      headers.InReplyTo,
		References:     headers.References,
	}
}

// ReplySubject prepends the reply marker once.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return replyMarker + trimmed
}

// ExtractAddress returns the bare address of a From header value.
func ExtractAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil && addr.Address != "" {
		return addr.Address
	}
	if m := angleAddr.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(from)
}

// ParseReferences splits a References or In-Reply-To header into
// message ids, keeping order and dropping duplicates.
func ParseReferences(header string) []string {
	var refs []string
	for _, field := range strings.Fields(header) {
		id := normalizeID(field)
		if id == "" || contains(refs, id) {
			continue
		}
		refs = append(refs, id)
	}
	return refs
}

// FormatReferences renders ids back into header form.
func FormatReferences(refs []string) string {
	return strings.Join(refs, " ")
}

func normalizeID(id string) string {
	id = strings.Trim(strings.TrimSpace(id), ",")
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, "<") {
		id = "<" + id
	}
	if !strings.HasSuffix(id, ">") {
		id += ">"
	}
	return id
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
