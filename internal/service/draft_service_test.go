package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/apperror"
	"draft-relay/internal/model"
	"draft-relay/internal/service"
)

func (f *fixture) resolve(t *testing.T, id string, status model.DraftStatus, at time.Time) {
	t.Helper()
	_, applied, err := f.drafts.TransitionUnlessTerminal(context.Background(), id, model.DraftTransition{Status: status, ResolvedAt: at})
	require.NoError(t, err)
	require.True(t, applied)
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	drafts := service.NewDraftService(f.drafts, f.logs, f.clock, time.UTC)
	now := f.clock.Now()

	f.putDraft(t, "pending", "m1")
	f.putDraft(t, "sent-today", "m2")
	f.putDraft(t, "edited-today", "m3")
	f.putDraft(t, "sent-yesterday", "m4")
	f.putDraft(t, "rejected", "m5")
	f.resolve(t, "sent-today", model.DraftStatusSent, now.Add(-time.Hour))
	f.resolve(t, "edited-today", model.DraftStatusEdited, now.Add(-2*time.Hour))
	f.resolve(t, "sent-yesterday", model.DraftStatusSent, now.Add(-24*time.Hour))
	f.resolve(t, "rejected", model.DraftStatusRejected, now)

	stats, err := drafts.GetStats(context.Background(), f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingDrafts)
	assert.Equal(t, 2, stats.SentToday)
	assert.Equal(t, 5, stats.TotalProcessed)
	assert.Equal(t, 60, stats.ApprovalRate)

	empty, err := drafts.GetStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, *empty)
}

func TestListDraftsByPeriodAndStatus(t *testing.T) {
	f := newFixture(t)
	drafts := service.NewDraftService(f.drafts, f.logs, f.clock, time.UTC)
	ctx := context.Background()

	f.putDraft(t, "today", "m1")
	f.clock.Set(f.clock.Now().Add(-10 * 24 * time.Hour))
	f.putDraft(t, "last-week", "m2")
	f.clock.Set(f.clock.Now().Add(10 * 24 * time.Hour))

	week, err := drafts.ListDrafts(ctx, f.account.ID, nil, "week")
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Equal(t, "today", week[0].ID)

	month, _ := drafts.ListDrafts(ctx, f.account.ID, nil, "month")
	assert.Len(t, month, 2)

	all, _ := drafts.ListDrafts(ctx, f.account.ID, nil, "fortnight")
	assert.Len(t, all, 2)

	f.resolve(t, "today", model.DraftStatusRejected, f.clock.Now())
	pending, err := drafts.ListPending(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "last-week", pending[0].ID)
}

func TestGetDraftHidesOtherAccounts(t *testing.T) {
	f := newFixture(t)
	drafts := service.NewDraftService(f.drafts, f.logs, f.clock, time.UTC)
	f.putDraft(t, "mine", "m1")

	got, err := drafts.GetDraft(context.Background(), f.account.ID, "mine")
	require.NoError(t, err)
	assert.Equal(t, "mine", got.ID)

	_, err = drafts.GetDraft(context.Background(), "someone-else", "mine")
	assert.ErrorIs(t, err, apperror.ErrDraftNotFound)
}

func TestGetLogsDefaultsLimit(t *testing.T) {
	f := newFixture(t)
	drafts := service.NewDraftService(f.drafts, f.logs, f.clock, time.UTC)
	for i := 0; i < 60; i++ {
		require.NoError(t, f.logs.Create(context.Background(), model.NewEmailLog(f.account.ID, "", model.EmailLogReceived, "gmail", nil)))
	}

	logs, err := drafts.GetLogs(context.Background(), f.account.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 50)

	logs, _ = drafts.GetLogs(context.Background(), f.account.ID, 5)
	assert.Len(t, logs, 5)
}
