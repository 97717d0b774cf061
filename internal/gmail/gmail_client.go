package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
	"draft-relay/internal/threading"
)

const user = "me"

// Config holds the OAuth client used to refresh tokens. Endpoint and
// TokenURL override the Google defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	Endpoint     string
	TokenURL     string
}

type gmailClient struct {
	oauth    *oauth2.Config
	endpoint string
	logger   *logger.Logger
}

func NewGmailClient(cfg Config, logger *logger.Logger) service.MailboxProvider {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &gmailClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{gmail.GmailModifyScope, gmail.GmailSendScope},
		},
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

// service builds a Gmail API client bound to one credential. Refresh is
// driven by the caller, so the token source never refreshes on its own.
func (g *gmailClient) service(ctx context.Context, cred model.Credential) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   "Bearer",
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

func (g *gmailClient) ListUnseen(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("is:unread after:%d", since.Unix())
	call := svc.Users.Messages.List(user).Q(query).Context(ctx)
	if max > 0 {
		call = call.MaxResults(int64(max))
	}
	list, err := call.Do()
	if err != nil {
		return nil, classify("list unseen", err)
	}

	batch := &model.UnseenBatch{Total: int(list.ResultSizeEstimate)}
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get(user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return nil, classify("get message", ctx.Err())
			}
			g.logger.Error("Failed to get message:", ref.Id, err)
			batch.Failed++
			continue
		}
		batch.Items = append(batch.Items, g.toInbound(msg))
	}

	g.logger.Info("Fetched", len(batch.Items), "unread messages from Gmail, estimate", batch.Total)
	return batch, nil
}

func (g *gmailClient) toInbound(msg *gmail.Message) *model.InboundMessage {
	in := &model.InboundMessage{
		SourceMessageID: msg.Id,
		ConversationID:  msg.ThreadId,
		Subject:         msg.Snippet,
		ReceivedAt:      time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return in
	}
	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			in.From = header.Value
		case "subject":
			in.Subject = header.Value
		case "message-id":
			in.MessageIDHeader = header.Value
		case "in-reply-to":
			in.InReplyToHeader = header.Value
		case "references":
			in.ReferencesHeader = header.Value
		}
	}
	in.Body = g.extractBody(msg.Payload)
	return in
}

// extractBody prefers the text/plain part and falls back to HTML.
func (g *gmailClient) extractBody(payload *gmail.MessagePart) string {
	if len(payload.Parts) == 0 {
		return g.decodePart(payload)
	}
	var htmlBody string
	for _, part := range payload.Parts {
		switch {
		case part.MimeType == "text/plain":
			if body := g.decodePart(part); body != "" {
				return body
			}
		case part.MimeType == "text/html" && htmlBody == "":
			htmlBody = g.decodePart(part)
		case len(part.Parts) > 0:
			if nested := g.extractBody(part); nested != "" && htmlBody == "" {
				htmlBody = nested
			}
		}
	}
	return htmlBody
}

func (g *gmailClient) decodePart(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	}
	if err != nil {
		g.logger.Error("Failed to decode email body:", err)
		return ""
	}
	return string(decoded)
}

func (g *gmailClient) Send(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return "", err
	}

	raw, _, err := threading.Compose(cred.Username, reply, time.Now())
	if err != nil {
		return "", err
	}
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: reply.ConversationID,
	}
	sent, err := svc.Users.Messages.Send(user, msg).Context(ctx).Do()
	if err != nil {
		return "", classify("send reply", err)
	}

	g.logger.Info("Sent reply in thread", reply.ConversationID, "as", sent.Id)
	return sent.Id, nil
}

func (g *gmailClient) MarkRead(ctx context.Context, cred model.Credential, sourceMessageID string) error {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return err
	}

	modifyRequest := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}
	if _, err := svc.Users.Messages.Modify(user, sourceMessageID, modifyRequest).Context(ctx).Do(); err != nil {
		return classify("mark read", err)
	}

	g.logger.Debug("Marked email as read:", sourceMessageID)
	return nil
}

func (g *gmailClient) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	if cred.RefreshToken == "" {
		return model.Credential{}, &apperror.AuthError{Message: "no refresh token"}
	}

	// an expired token forces the source to hit the token endpoint
	stale := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := g.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return model.Credential{}, &apperror.AuthError{Message: fmt.Sprintf("refresh rejected: %s", retrieveErr.ErrorCode)}
		}
		return model.Credential{}, apperror.Upstream("refresh token", err)
	}

	fresh := cred
	fresh.AccessToken = token.AccessToken
	fresh.Expiry = token.Expiry
	if token.RefreshToken != "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

// classify maps Gmail API failures onto the error taxonomy.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &apperror.AuthError{Message: apiErr.Message}
		case apiErr.Code == http.StatusTooManyRequests:
			return &apperror.RateLimitedError{Op: op}
		case apiErr.Code >= 500:
			return &apperror.UpstreamError{Op: op, Err: err}
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return apperror.Upstream(op, err)
}
