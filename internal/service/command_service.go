package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/repository"
	"draft-relay/internal/threading"
)

type commandService struct {
	draftRepo   repository.DraftRepository
	accountRepo repository.AccountRepository
	logRepo     repository.EmailLogRepository
	mailbox     MailboxProvider
	credentials CredentialService
	notifier    NotificationGateway
	events      EventPublisher
	clock       clock.Clock
	timeout     time.Duration
	logger      *logger.Logger

	locksMu sync.Mutex
	locks   map[string]*draftLock
}

type draftLock struct {
	mu   sync.Mutex
	refs int
}

func NewCommandService(
	draftRepo repository.DraftRepository,
	accountRepo repository.AccountRepository,
	logRepo repository.EmailLogRepository,
	mailbox MailboxProvider,
	credentials CredentialService,
	notifier NotificationGateway,
	events EventPublisher,
	clk clock.Clock,
	timeout time.Duration,
	logger *logger.Logger,
) CommandService {
	return &commandService{
		draftRepo:   draftRepo,
		accountRepo: accountRepo,
		logRepo:     logRepo,
		mailbox:     mailbox,
		credentials: credentials,
		notifier:    notifier,
		events:      events,
		clock:       clk,
		timeout:     timeout,
		logger:      logger,
		locks:       make(map[string]*draftLock),
	}
}

func (s *commandService) Apply(ctx context.Context, draftID, accountID string, cmd model.Command) (*CommandResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	unlock := s.lock(draftID)
	defer unlock()

	draft, err := s.draftRepo.FindByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.AccountID != accountID {
		return &CommandResult{OK: false}, apperror.ErrInvalidState
	}
	if draft.Status.IsTerminal() {
		return &CommandResult{OK: false, Status: draft.Status, Draft: draft}, nil
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	transition := model.DraftTransition{Status: cmd.TargetStatus()}
	switch cmd.Kind {
	case model.CommandApprove:
		sentID, err := s.send(ctx, account, draft, draft.GeneratedText)
		if err != nil {
			return nil, err
		}
		transition.DispatchedMessageID = sentID

	case model.CommandEdit:
		draft, err = s.draftRepo.SetEditedText(ctx, draft.ID, cmd.EditText)
		if err != nil {
			return nil, fmt.Errorf("failed to store edited text: %w", err)
		}
		sentID, err := s.send(ctx, account, draft, cmd.EditText)
		if err != nil {
			return nil, err
		}
		transition.DispatchedMessageID = sentID
	}

	// once a reply is out the caller going away must not leave the draft pending
	ctx = context.WithoutCancel(ctx)
	if cmd.Kind != model.CommandReject {
		s.markRead(ctx, account, draft)
	}

	transition.ResolvedAt = s.clock.Now()
	updated, applied, err := s.draftRepo.TransitionUnlessTerminal(ctx, draft.ID, transition)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft status: %w", err)
	}
	if !applied {
		// resolved by another replica between our read and the update
		s.logger.Warn("Draft resolved concurrently:", draft.ID, updated.Status)
		return &CommandResult{OK: false, Status: updated.Status, Draft: updated}, nil
	}

	s.record(ctx, account, updated, cmd)
	s.events.Publish(account.ID, EventDraftResolved, updated)
	s.confirm(ctx, account, updated)

	return &CommandResult{OK: true, Status: updated.Status, Draft: updated}, nil
}

func (s *commandService) send(ctx context.Context, account *model.Account, draft *model.Draft, body string) (string, error) {
	cred, err := s.credentials.Valid(ctx, account)
	if err != nil {
		if apperror.IsAuthError(err) {
			s.credentials.Invalidate(ctx, account, err)
			return "", err
		}
		return "", apperror.Upstream("send reply", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sentID, err := s.mailbox.Send(sendCtx, cred, threading.BuildReply(draft, body))
	if err != nil {
		s.logger.Error("Failed to send reply for draft", draft.ID, err)
		if apperror.IsAuthError(err) {
			s.credentials.Invalidate(ctx, account, err)
		}
		return "", apperror.Upstream("send reply", err)
	}
	return sentID, nil
}

func (s *commandService) markRead(ctx context.Context, account *model.Account, draft *model.Draft) {
	cred, err := s.credentials.Valid(ctx, account)
	if err != nil {
		return
	}
	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.mailbox.MarkRead(readCtx, cred, draft.SourceMessageID); err != nil {
		s.logger.Warn("Failed to mark source message read:", draft.SourceMessageID, err)
	}
}

func (s *commandService) record(ctx context.Context, account *model.Account, draft *model.Draft, cmd model.Command) {
	switch cmd.Kind {
	case model.CommandApprove:
		writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogApproved, account.Provider, nil))
	case model.CommandEdit:
		writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogEdited, account.Provider, map[string]interface{}{
			"edited_length": len(draft.EditedText),
		}))
	case model.CommandReject:
		writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogRejected, account.Provider, nil))
		return
	}
	writeLog(ctx, s.logRepo, s.logger, model.NewEmailLog(account.ID, draft.ID, model.EmailLogSent, account.Provider, map[string]interface{}{
		"to":                    draft.From,
		"dispatched_message_id": draft.DispatchedMessageID,
	}))
}

func (s *commandService) confirm(ctx context.Context, account *model.Account, draft *model.Draft) {
	if account.NotificationTarget == "" {
		return
	}
	kind := model.NotificationRejected
	switch draft.Status {
	case model.DraftStatusSent:
		kind = model.NotificationSent
	case model.DraftStatusEdited:
		kind = model.NotificationEdited
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.notifier.Announce(notifyCtx, account.NotificationTarget, &model.Notification{Kind: kind, Draft: draft}); err != nil {
		s.logger.Error("Failed to send confirmation for draft", draft.ID, err)
	}
}

func (s *commandService) HandleInbound(ctx context.Context, from, body string) {
	target := strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
	account, err := s.accountRepo.FindByNotificationTarget(ctx, target)
	if err != nil {
		s.logger.Warn("Inbound message from unknown sender:", target)
		return
	}

	cmd, ref, ok := ParseCommand(body)
	if !ok {
		s.logger.Debug("Ignoring inbound message that is not a command from account", account.ID)
		return
	}

	matches, err := s.draftRepo.FindByIDPrefix(ctx, account.ID, ref)
	if err != nil {
		s.logger.Error("Failed to resolve draft reference:", err)
		return
	}
	if len(matches) != 1 {
		s.logger.Warnf("Draft reference %q matched %d drafts for account %s", ref, len(matches), account.ID)
		return
	}

	result, err := s.Apply(ctx, matches[0].ID, account.ID, cmd)
	if err != nil {
		if !errors.Is(err, apperror.ErrDraftNotFound) {
			s.logger.Error("Failed to apply inbound command:", err)
		}
		return
	}
	if !result.OK {
		s.logger.Info("Inbound command on resolved draft", matches[0].ID, result.Status)
	}
}

// lock serializes commands on one draft within the process.
func (s *commandService) lock(draftID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[draftID]
	if !ok {
		l = &draftLock{}
		s.locks[draftID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, draftID)
		}
		s.locksMu.Unlock()
	}
}
