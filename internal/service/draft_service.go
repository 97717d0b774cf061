package service

import (
	"context"
	"fmt"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/model"
	"draft-relay/internal/repository"
)

type draftService struct {
	draftRepo repository.DraftRepository
	logRepo   repository.EmailLogRepository
	clock     clock.Clock
	location  *time.Location
}

// NewDraftService builds the read side of the dashboard. location sets the
// midnight that bounds the "sent today" counter.
func NewDraftService(draftRepo repository.DraftRepository, logRepo repository.EmailLogRepository, clk clock.Clock, location *time.Location) DraftService {
	if location == nil {
		location = time.Local
	}
	return &draftService{
		draftRepo: draftRepo,
		logRepo:   logRepo,
		clock:     clk,
		location:  location,
	}
}

func (s *draftService) GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error) {
	draft, err := s.draftRepo.FindByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.AccountID != accountID {
		return nil, apperror.ErrDraftNotFound
	}
	return draft, nil
}

func (s *draftService) ListDrafts(ctx context.Context, accountID string, status *model.DraftStatus, period string) ([]*model.Draft, error) {
	drafts, err := s.draftRepo.FindByAccount(ctx, model.DraftFilter{
		AccountID: accountID,
		Status:    status,
		Since:     model.PeriodSince(period, s.clock.Now()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	return drafts, nil
}

func (s *draftService) ListPending(ctx context.Context, accountID string) ([]*model.Draft, error) {
	pending := model.DraftStatusPending
	return s.ListDrafts(ctx, accountID, &pending, "")
}

func (s *draftService) GetStats(ctx context.Context, accountID string) (*model.Stats, error) {
	drafts, err := s.draftRepo.FindByAccount(ctx, model.DraftFilter{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts for stats: %w", err)
	}
	now := s.clock.Now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	stats := model.ComputeStats(drafts, startOfDay)
	return &stats, nil
}

func (s *draftService) GetLogs(ctx context.Context, accountID string, limit int) ([]*model.EmailLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := s.logRepo.FindByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	return logs, nil
}
