package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"draft-relay/internal/apperror"
	"draft-relay/internal/clock"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
)

var errEmptyReply = errors.New("generation returned an empty reply")

type generationGateway struct {
	client      AIClient
	clock       clock.Clock
	minInterval time.Duration
	timeout     time.Duration
	logger      *logger.Logger
}

func NewGenerationGateway(client AIClient, clk clock.Clock, minInterval, timeout time.Duration, logger *logger.Logger) GenerationGateway {
	return &generationGateway{
		client:      client,
		clock:       clk,
		minInterval: minInterval,
		timeout:     timeout,
		logger:      logger,
	}
}

// Generate performs a single call under the external-call timeout. It is not throttled.
func (g *generationGateway) Generate(ctx context.Context, accountID, originalText string, prefs model.ReplyPreferences) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.client.GenerateReply(callCtx, originalText, prefs)
	if err != nil {
		if apperror.IsRateLimited(err) {
			g.logger.Warn("Generation rate limited for account", accountID)
		}
		return "", apperror.Upstream("generate reply", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", apperror.Upstream("generate reply", errEmptyReply)
	}
	return reply, nil
}

func (g *generationGateway) NewBatch() GenerationBatch {
	return &generationBatch{gateway: g}
}

// generationBatch spaces call starts by a fixed minimum interval.
type generationBatch struct {
	gateway *generationGateway
	mu      sync.Mutex
	last    time.Time
	started bool
}

func (b *generationBatch) Generate(ctx context.Context, accountID, originalText string, prefs model.ReplyPreferences) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clk := b.gateway.clock
	if b.started {
		if wait := b.last.Add(b.gateway.minInterval).Sub(clk.Now()); wait > 0 {
			b.gateway.logger.Debugf("Waiting %s before next generation for account %s", wait, accountID)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-clk.After(wait):
			}
		}
	}
	b.started = true
	b.last = clk.Now()

	return b.gateway.Generate(ctx, accountID, originalText, prefs)
}
