// Package imap serves accounts that connect with a username and password:
// unseen items are read over IMAP and replies go out over SMTP.
package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
	"draft-relay/internal/threading"
)

const inbox = "INBOX"

type dialFunc func(addr string) (*imapclient.Client, error)

type sendFunc func(cred model.Credential, m *gomail.Message) error

type client struct {
	dial   dialFunc
	send   sendFunc
	logger *logger.Logger
}

func NewClient(logger *logger.Logger) service.MailboxProvider {
	return &client{
		dial:   dialIMAP,
		send:   sendSMTP,
		logger: logger,
	}
}

// dialIMAP uses STARTTLS on the plain port and implicit TLS otherwise.
func dialIMAP(addr string) (*imapclient.Client, error) {
	if strings.HasSuffix(addr, ":143") {
		return imapclient.DialStartTLS(addr, nil)
	}
	return imapclient.DialTLS(addr, nil)
}

func sendSMTP(cred model.Credential, m *gomail.Message) error {
	host, portStr, err := net.SplitHostPort(cred.SMTPAddr)
	if err != nil {
		return fmt.Errorf("invalid SMTP address %q: %w", cred.SMTPAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid SMTP port %q: %w", portStr, err)
	}
	return gomail.NewDialer(host, port, cred.Username, cred.Password).DialAndSend(m)
}

// connect logs in and selects the inbox. The returned release func logs out;
// cancelling ctx closes the connection.
func (c *client) connect(ctx context.Context, cred model.Credential) (*imapclient.Client, *imapv2.SelectData, func(), error) {
	conn, err := c.dial(cred.IMAPAddr)
	if err != nil {
		return nil, nil, nil, apperror.Upstream("imap connect", fmt.Errorf("connecting to IMAP %s: %w", cred.IMAPAddr, err))
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	release := func() {
		stop()
		_ = conn.Logout().Wait()
	}

	if err := conn.Login(cred.Username, cred.Password).Wait(); err != nil {
		release()
		if ctx.Err() != nil {
			return nil, nil, nil, apperror.Upstream("imap login", ctx.Err())
		}
		return nil, nil, nil, &apperror.AuthError{Message: fmt.Sprintf("authentication failed for %s: %v", cred.Username, err)}
	}

	selected, err := conn.Select(inbox, nil).Wait()
	if err != nil {
		release()
		return nil, nil, nil, apperror.Upstream("imap select", fmt.Errorf("selecting %s: %w", inbox, err))
	}
	return conn, selected, release, nil
}

func (c *client) ListUnseen(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error) {
	conn, selected, release, err := c.connect(ctx, cred)
	if err != nil {
		return nil, err
	}
	defer release()

	criteria := &imapv2.SearchCriteria{
		Since:   since,
		NotFlag: []imapv2.Flag{imapv2.FlagSeen},
	}
	searchData, err := conn.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, apperror.Upstream("imap search", fmt.Errorf("searching messages: %w", err))
	}

	uids := searchData.AllUIDs()
	batch := &model.UnseenBatch{Total: len(uids)}
	if len(uids) == 0 {
		return batch, nil
	}
	// oldest first so a backlog drains in arrival order
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	bodySection := &imapv2.FetchItemBodySection{Peek: true}
	fetchCmd := conn.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			c.logger.Error("Failed to collect IMAP message:", err)
			batch.Failed++
			continue
		}
		batch.Items = append(batch.Items, toInbound(selected.UIDValidity, buf, buf.FindBodySection(bodySection)))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, apperror.Upstream("imap fetch", fmt.Errorf("fetching messages: %w", err))
	}

	c.logger.Info("Fetched", len(batch.Items), "unseen messages over IMAP, total", batch.Total)
	return batch, nil
}

func toInbound(validity uint32, buf *imapclient.FetchMessageBuffer, raw []byte) *model.InboundMessage {
	in := &model.InboundMessage{
		SourceMessageID: formatSourceID(validity, buf.UID),
	}
	if buf.Envelope != nil {
		in.Subject = buf.Envelope.Subject
		in.ReceivedAt = buf.Envelope.Date
		if buf.Envelope.MessageID != "" {
			in.MessageIDHeader = "<" + buf.Envelope.MessageID + ">"
		}
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			in.From = (&mail.Address{Name: from.Name, Address: from.Addr()}).String()
		}
	}
	if raw != nil {
		parseRaw(in, raw)
	}
	refs := threading.ParseReferences(in.ReferencesHeader)
	switch {
	case len(refs) > 0:
		in.ConversationID = refs[0]
	default:
		in.ConversationID = in.MessageIDHeader
	}
	return in
}

// parseRaw fills threading headers and the body from the full message.
func parseRaw(in *model.InboundMessage, raw []byte) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		in.Body = string(raw)
		return
	}
	defer mr.Close()

	if id := mr.Header.Get("Message-Id"); id != "" {
		in.MessageIDHeader = strings.TrimSpace(id)
	}
	in.InReplyToHeader = strings.TrimSpace(mr.Header.Get("In-Reply-To"))
	in.ReferencesHeader = strings.TrimSpace(mr.Header.Get("References"))
	if in.Subject == "" {
		in.Subject, _ = mr.Header.Subject()
	}

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}
	in.Body = textBody
	if in.Body == "" {
		in.Body = htmlBody
	}
}

func (c *client) MarkRead(ctx context.Context, cred model.Credential, sourceMessageID string) error {
	validity, uid, err := parseSourceID(sourceMessageID)
	if err != nil {
		return err
	}
	conn, selected, release, err := c.connect(ctx, cred)
	if err != nil {
		return err
	}
	defer release()

	if selected.UIDValidity != validity {
		return fmt.Errorf("mailbox UIDVALIDITY changed, message %s no longer addressable", sourceMessageID)
	}
	storeCmd := conn.Store(imapv2.UIDSetNum(uid), &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Silent: true,
		Flags:  []imapv2.Flag{imapv2.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return apperror.Upstream("imap store", fmt.Errorf("marking message read: %w", err))
	}
	return nil
}

func (c *client) Send(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error) {
	messageID := generateMessageID(cred.Username)

	m := gomail.NewMessage()
	m.SetHeader("From", cred.Username)
	m.SetHeader("To", reply.To)
	m.SetHeader("Subject", reply.Subject)
	m.SetHeader("Message-ID", messageID)
	if reply.InReplyTo != "" {
		m.SetHeader("In-Reply-To", reply.InReplyTo)
	}
	if len(reply.References) > 0 {
		m.SetHeader("References", threading.FormatReferences(reply.References))
	}
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", reply.Body)

	done := make(chan error, 1)
	go func() { done <- c.send(cred, m) }()

	select {
	case <-ctx.Done():
		return "", apperror.Upstream("smtp send", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", classifySMTP(err)
		}
	}

	c.logger.Info("Sent reply over SMTP as", messageID)
	return messageID, nil
}

// Refresh is a no-op: password credentials do not expire.
func (c *client) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	return cred, nil
}

func classifySMTP(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 535 || protoErr.Code == 530:
			return &apperror.AuthError{Message: protoErr.Msg}
		case protoErr.Code >= 400 && protoErr.Code < 500:
			return &apperror.UpstreamError{Op: "smtp send", Err: err}
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return apperror.Upstream("smtp send", err)
}

func generateMessageID(username string) string {
	domain := "localhost"
	if at := strings.LastIndex(username, "@"); at >= 0 && at < len(username)-1 {
		domain = username[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

// Source ids pin the UID to the mailbox UIDVALIDITY they were issued under.
func formatSourceID(validity uint32, uid imapv2.UID) string {
	return fmt.Sprintf("%d:%d", validity, uid)
}

func parseSourceID(id string) (uint32, imapv2.UID, error) {
	validityStr, uidStr, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed IMAP source id %q", id)
	}
	validity, err := strconv.ParseUint(validityStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed IMAP source id %q: %w", id, err)
	}
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil || uid == 0 {
		return 0, 0, fmt.Errorf("malformed IMAP source id %q", id)
	}
	return uint32(validity), imapv2.UID(uid), nil
}
