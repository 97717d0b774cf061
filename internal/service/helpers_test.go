package service_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"draft-relay/internal/ai"
	"draft-relay/internal/clock"
	"draft-relay/internal/gmail"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
	"draft-relay/internal/notify"
	"draft-relay/internal/repository/memory"
	"draft-relay/internal/service"
)

const (
	minInterval = 21 * time.Second
	callTimeout = 5 * time.Second
	tokenBuffer = 5 * time.Minute
)

type publishedEvent struct {
	accountID string
	eventType string
	data      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) Publish(accountID, eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{accountID, eventType, data})
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

type fixture struct {
	clock       *clock.Fake
	accounts    *memory.InMemoryAccountRepository
	drafts      *memory.InMemoryDraftRepository
	logs        *memory.InMemoryEmailLogRepository
	mailbox     *gmail.MockMailbox
	ai          *ai.MockAIClient
	notifier    *notify.MockNotifier
	events      *recordingPublisher
	credentials service.CredentialService
	generator   service.GenerationGateway
	scans       service.ScanService
	commands    service.CommandService
	account     *model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewWithWriter(&bytes.Buffer{})

	f := &fixture{
		clock:    clock.NewFake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		accounts: memory.NewInMemoryAccountRepository(),
		drafts:   memory.NewInMemoryDraftRepository(10 * time.Minute),
		logs:     memory.NewInMemoryEmailLogRepository(),
		mailbox:  gmail.NewMockMailbox(),
		ai:       ai.NewMockAIClient(),
		notifier: notify.NewMockNotifier(),
		events:   &recordingPublisher{},
	}
	f.credentials = service.NewCredentialService(f.accounts, f.mailbox, f.notifier, f.events, f.clock, tokenBuffer, callTimeout, log)
	f.generator = service.NewGenerationGateway(f.ai, f.clock, minInterval, callTimeout, log)
	f.scans = service.NewScanService(f.accounts, f.drafts, f.logs, f.mailbox, f.credentials, f.generator, f.notifier, f.events, f.clock, callTimeout, log)
	f.commands = service.NewCommandService(f.drafts, f.accounts, f.logs, f.mailbox, f.credentials, f.notifier, f.events, f.clock, callTimeout, log)

	f.account = model.NewAccount("owner@example.com", "Dana Owner", model.ProviderGmail, model.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
	})
	f.account.NotificationTarget = "+15550001111"
	require.NoError(t, f.accounts.Create(context.Background(), f.account))
	return f
}

func inbound(sourceID, body string) *model.InboundMessage {
	return &model.InboundMessage{
		SourceMessageID: sourceID,
		ConversationID:  "thread-" + sourceID,
		From:            "Alice <alice@example.com>",
		Subject:         "Meeting",
		Body:            body,
		MessageIDHeader: "<" + sourceID + "@mail.example.com>",
	}
}

// serve makes ListUnseen return items with the given provider total.
func (f *fixture) serve(total int, items ...*model.InboundMessage) {
	f.mailbox.ListUnseenFunc = func(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error) {
		out := items
		if max > 0 && len(out) > max {
			out = out[:max]
		}
		return &model.UnseenBatch{Items: out, Total: total}, nil
	}
}

// putDraft stores a pending draft with a fixed id.
func (f *fixture) putDraft(t *testing.T, id, sourceID string) *model.Draft {
	t.Helper()
	ctx := context.Background()
	draft := model.NewDraft(f.account.ID, sourceID, "thread-"+sourceID,
		model.ThreadRefs{OriginalMessageID: "<" + sourceID + "@mail.example.com>"},
		"alice@example.com", "Re: Meeting", "Can we meet Tuesday?", "Tuesday works.", f.clock.Now())
	draft.ID = id
	claimed, err := f.drafts.CreateIfAbsent(ctx, f.account.ID, sourceID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, f.drafts.Finalize(ctx, draft))
	return draft
}
