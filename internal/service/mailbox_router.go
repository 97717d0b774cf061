package service

import (
	"context"
	"fmt"
	"time"

	"draft-relay/internal/model"
)

// mailboxRouter dispatches each call to the provider named by the credential.
type mailboxRouter struct {
	providers map[string]MailboxProvider
}

func NewMailboxRouter(providers map[string]MailboxProvider) MailboxProvider {
	return &mailboxRouter{providers: providers}
}

func (r *mailboxRouter) provider(cred model.Credential) (MailboxProvider, error) {
	p, ok := r.providers[cred.Provider]
	if !ok {
		return nil, fmt.Errorf("no mailbox provider registered for %q", cred.Provider)
	}
	return p, nil
}

func (r *mailboxRouter) ListUnseen(ctx context.Context, cred model.Credential, since time.Time, max int) (*model.UnseenBatch, error) {
	p, err := r.provider(cred)
	if err != nil {
		return nil, err
	}
	return p.ListUnseen(ctx, cred, since, max)
}

func (r *mailboxRouter) Send(ctx context.Context, cred model.Credential, reply *model.OutboundReply) (string, error) {
	p, err := r.provider(cred)
	if err != nil {
		return "", err
	}
	return p.Send(ctx, cred, reply)
}

func (r *mailboxRouter) MarkRead(ctx context.Context, cred model.Credential, sourceMessageID string) error {
	p, err := r.provider(cred)
	if err != nil {
		return err
	}
	return p.MarkRead(ctx, cred, sourceMessageID)
}

func (r *mailboxRouter) Refresh(ctx context.Context, cred model.Credential) (model.Credential, error) {
	p, err := r.provider(cred)
	if err != nil {
		return model.Credential{}, err
	}
	return p.Refresh(ctx, cred)
}
