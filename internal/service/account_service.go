package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/repository"
)

type accountService struct {
	accountRepo repository.AccountRepository
	validate    *validator.Validate
	logger      *logger.Logger
}

func NewAccountService(accountRepo repository.AccountRepository, logger *logger.Logger) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (s *accountService) ConnectGmail(ctx context.Context, email, name, accessToken, refreshToken string, expiry time.Time) (*model.Account, error) {
	if email == "" {
		return nil, fmt.Errorf("google profile has no email address")
	}
	account := model.NewAccount(email, name, model.ProviderGmail, model.Credential{
		Username:     email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
	})

	if refreshToken == "" {
		// Google omits the refresh token on repeat consent; keep the stored one
		if existing, err := s.accountRepo.FindByEmail(ctx, email); err == nil {
			account.Credential.RefreshToken = existing.Credential.RefreshToken
		}
	}

	stored, err := s.accountRepo.Upsert(ctx, account)
	if err != nil {
		s.logger.Error("Failed to store account:", err)
		return nil, fmt.Errorf("failed to store account: %w", err)
	}
	s.logger.Info("Connected Gmail account:", stored.ID)
	return stored, nil
}

func (s *accountService) Register(ctx context.Context, account *model.Account) (*model.Account, error) {
	settings := AccountSettings{
		AutoScanEnabled:         account.AutoScanEnabled,
		AutoScanIntervalMinutes: account.AutoScanIntervalMinutes,
		NotificationTarget:      account.NotificationTarget,
		ReplyPreferences:        account.ReplyPreferences,
	}
	if err := s.validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("invalid settings for %s: %w", account.Email, err)
	}

	stored, err := s.accountRepo.Upsert(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}
	return s.applySettings(ctx, stored, settings)
}

func (s *accountService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return s.accountRepo.FindByID(ctx, accountID)
}

func (s *accountService) UpdateSettings(ctx context.Context, accountID string, settings AccountSettings) (*model.Account, error) {
	if err := s.validate.Struct(settings); err != nil {
		return nil, err
	}
	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.applySettings(ctx, account, settings)
}

func (s *accountService) applySettings(ctx context.Context, account *model.Account, settings AccountSettings) (*model.Account, error) {
	account.AutoScanEnabled = settings.AutoScanEnabled
	account.AutoScanIntervalMinutes = settings.AutoScanIntervalMinutes
	account.NotificationTarget = settings.NotificationTarget
	account.ReplyPreferences = settings.ReplyPreferences

	if err := s.accountRepo.UpdateSettings(ctx, account); err != nil {
		s.logger.Error("Failed to update account settings:", err)
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return s.accountRepo.FindByID(ctx, account.ID)
}
