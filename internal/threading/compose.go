package threading

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"draft-relay/internal/model"
)

// Compose renders reply as an RFC 5322 message from the given sender and
// returns the raw bytes together with the generated Message-ID.
func Compose(from string, reply *model.OutboundReply, date time.Time) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: reply.To}})
	h.SetSubject(reply.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("failed to generate message id: %w", err)
	}
	if reply.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{bareID(reply.InReplyTo)})
	}
	if len(reply.References) > 0 {
		ids := make([]string, 0, len(reply.References))
		for _, ref := range reply.References {
			ids = append(ids, bareID(ref))
		}
		h.SetMsgIDList("References", ids)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, reply.Body); err != nil {
		return nil, "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish message: %w", err)
	}

	id, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read message id: %w", err)
	}
	return buf.Bytes(), normalizeID(id), nil
}

func bareID(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "<"), ">")
}
