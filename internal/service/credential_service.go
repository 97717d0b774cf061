package service

import (
	"context"
	"fmt"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/repository"
)

type credentialService struct {
	accountRepo repository.AccountRepository
	mailbox     MailboxProvider
	notifier    NotificationGateway
	events      EventPublisher
	clock       clock.Clock
	buffer      time.Duration
	timeout     time.Duration
	logger      *logger.Logger
}

func NewCredentialService(
	accountRepo repository.AccountRepository,
	mailbox MailboxProvider,
	notifier NotificationGateway,
	events EventPublisher,
	clk clock.Clock,
	buffer, timeout time.Duration,
	logger *logger.Logger,
) CredentialService {
	return &credentialService{
		accountRepo: accountRepo,
		mailbox:     mailbox,
		notifier:    notifier,
		events:      events,
		clock:       clk,
		buffer:      buffer,
		timeout:     timeout,
		logger:      logger,
	}
}

func (s *credentialService) Valid(ctx context.Context, account *model.Account) (model.Credential, error) {
	cred := account.Credential
	if cred.Provider == "" {
		cred.Provider = account.Provider
	}
	if !cred.ExpiresWithin(s.clock.Now(), s.buffer) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return model.Credential{}, &apperror.AuthError{AccountID: account.ID, Message: "access token expired and no refresh token is stored"}
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fresh, err := s.mailbox.Refresh(refreshCtx, cred)
	if err != nil {
		if apperror.IsTransient(err) {
			return model.Credential{}, apperror.Upstream("refresh credential", err)
		}
		return model.Credential{}, &apperror.AuthError{AccountID: account.ID, Message: fmt.Sprintf("token refresh failed: %v", err)}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	fresh.Provider = cred.Provider

	if err := s.accountRepo.UpdateCredential(ctx, account.ID, fresh); err != nil {
		return model.Credential{}, fmt.Errorf("failed to store refreshed credential: %w", err)
	}
	s.logger.Info("Refreshed credential for account:", account.ID)
	return fresh, nil
}

func (s *credentialService) Invalidate(ctx context.Context, account *model.Account, cause error) {
	s.logger.Warn("Account requires reconnect:", account.ID, cause)

	if err := s.accountRepo.MarkReconnectRequired(ctx, account.ID); err != nil {
		s.logger.Error("Failed to mark account for reconnect:", err)
	}
	s.events.Publish(account.ID, EventReconnectRequired, map[string]string{"account_id": account.ID})

	if account.NotificationTarget == "" {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.notifier.Announce(notifyCtx, account.NotificationTarget, &model.Notification{
		Kind:    model.NotificationReconnectRequired,
		Message: fmt.Sprintf("Mailbox %s needs to be reconnected before drafts can be created or sent.", account.Email),
	})
	if err != nil {
		s.logger.Error("Failed to send reconnect notification:", err)
	}
}
