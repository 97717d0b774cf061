package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/repository"
	"draft-relay/internal/threading"
)

const (
	defaultTone    = "professional"
	defaultSignOff = "Best regards"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

type scanService struct {
	accountRepo repository.AccountRepository
	draftRepo   repository.DraftRepository
	logRepo     repository.EmailLogRepository
	mailbox     MailboxProvider
	credentials CredentialService
	generator   GenerationGateway
	notifier    NotificationGateway
	events      EventPublisher
	clock       clock.Clock
	timeout     time.Duration
	sanitizer   *bluemonday.Policy
	logger      *logger.Logger
}

func NewScanService(
	accountRepo repository.AccountRepository,
	draftRepo repository.DraftRepository,
	logRepo repository.EmailLogRepository,
	mailbox MailboxProvider,
	credentials CredentialService,
	generator GenerationGateway,
	notifier NotificationGateway,
	events EventPublisher,
	clk clock.Clock,
	timeout time.Duration,
	logger *logger.Logger,
) ScanService {
	return &scanService{
		accountRepo: accountRepo,
		draftRepo:   draftRepo,
		logRepo:     logRepo,
		mailbox:     mailbox,
		credentials: credentials,
		generator:   generator,
		notifier:    notifier,
		events:      events,
		clock:       clk,
		timeout:     timeout,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger,
	}
}

func (s *scanService) Scan(ctx context.Context, accountID string, lookback time.Duration, maxItems int) (*ScanResult, error) {
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	cred, err := s.credentials.Valid(ctx, account)
	if err != nil {
		if apperror.IsAuthError(err) {
			s.credentials.Invalidate(ctx, account, err)
		}
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	batch, err := s.mailbox.ListUnseen(listCtx, cred, s.clock.Now().Add(-lookback), maxItems)
	cancel()
	if err != nil {
		if apperror.IsAuthError(err) {
			authErr := &apperror.AuthError{AccountID: account.ID, Message: err.Error()}
			s.credentials.Invalidate(ctx, account, authErr)
			return nil, authErr
		}
		return nil, fmt.Errorf("failed to list unseen messages: %w", apperror.Upstream("list unseen", err))
	}

	items := batch.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	// items the provider listed but could not return count as handled failures
	result := &ScanResult{
		Created:    []string{},
		TotalFound: batch.Total,
		Errors:     batch.Failed,
		Processed:  batch.Failed,
	}
	if result.TotalFound < len(batch.Items)+batch.Failed {
		result.TotalFound = len(batch.Items) + batch.Failed
	}

	gen := s.generator.NewBatch()
	for _, msg := range items {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		draft, claimed, err := s.processItem(ctx, account, gen, msg)
		switch {
		case err != nil:
			result.Errors++
			s.logger.Error("Failed to create draft for message", msg.SourceMessageID, err)
		case !claimed:
			result.Skipped++
		default:
			result.Created = append(result.Created, draft.ID)
		}
	}

	if remaining := result.TotalFound - result.Processed; remaining > 0 {
		result.Remaining = remaining
		result.MoreAvailable = true
		result.Note = fmt.Sprintf("Limited to %d messages. %d more will be picked up by a later scan.", result.Processed, remaining)
	}

	s.logger.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"created":    len(result.Created),
		"skipped":    result.Skipped,
		"errors":     result.Errors,
		"remaining":  result.Remaining,
	}).Info("Scan completed")
	s.events.Publish(account.ID, EventScanCompleted, result)
	return result, nil
}

// processItem claims msg and builds its draft. claimed is false when another
// scan already owns the item. A failure after the claim releases it.
func (s *scanService) processItem(ctx context.Context, account *model.Account, gen GenerationBatch, msg *model.InboundMessage) (*model.Draft, bool, error) {
	claimed, err := s.draftRepo.CreateIfAbsent(ctx, account.ID, msg.SourceMessageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim message: %w", err)
	}
	if !claimed {
		return nil, false, nil
	}

	draft, err := s.buildDraft(ctx, account, gen, msg)
	if err == nil {
		err = s.draftRepo.Finalize(ctx, draft)
	}
	if err != nil {
		if relErr := s.draftRepo.Release(context.WithoutCancel(ctx), account.ID, msg.SourceMessageID); relErr != nil {
			s.logger.Error("Failed to release claim:", relErr)
		}
		return nil, true, err
	}

	s.afterCreate(ctx, account, draft)
	return draft, true, nil
}

func (s *scanService) buildDraft(ctx context.Context, account *model.Account, gen GenerationBatch, msg *model.InboundMessage) (*model.Draft, error) {
	refs := threading.Resolve(msg)
	text := s.plainText(msg.Body)
	if text == "" {
		text = strings.TrimSpace(msg.Subject)
	}
	if text == "" {
		return nil, errors.New("message has no text to reply to")
	}

	reply, err := gen.Generate(ctx, account.ID, text, replyPreferences(account))
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	return model.NewDraft(
		account.ID,
		msg.SourceMessageID,
		msg.ConversationID,
		refs,
		threading.ExtractAddress(msg.From),
		threading.ReplySubject(msg.Subject),
		text,
		reply,
		s.clock.Now(),
	), nil
}

func (s *scanService) afterCreate(ctx context.Context, account *model.Account, draft *model.Draft) {
	writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogReceived, account.Provider, map[string]interface{}{
		"from":              draft.From,
		"subject":           draft.Subject,
		"source_message_id": draft.SourceMessageID,
	}))
	writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogDraftCreated, account.Provider, nil))

	s.events.Publish(account.ID, EventDraftCreated, draft)

	if account.NotificationTarget == "" {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.notifier.Announce(notifyCtx, account.NotificationTarget, &model.Notification{
		Kind:  model.NotificationDraftCreated,
		Draft: draft,
	}); err != nil {
		s.logger.Error("Failed to announce draft", draft.ID, err)
	}
}

// plainText reduces an HTML or plain body to readable text.
func (s *scanService) plainText(body string) string {
	text := s.sanitizer.Sanitize(body)
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func replyPreferences(account *model.Account) model.ReplyPreferences {
	prefs := account.ReplyPreferences
	if prefs.Tone == "" {
		prefs.Tone = defaultTone
	}
	if prefs.SignOff == "" {
		prefs.SignOff = defaultSignOff
	}
	if prefs.Name == "" {
		prefs.Name = account.Name
	}
	return prefs
}

func writeLog(ctx context.Context, repo repository.EmailLogRepository, logger *logger.Logger, entry *model.EmailLog) {
	if err := repo.Create(ctx, entry); err != nil {
		logger.Error("Failed to write email log:", err)
	}
}
