package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"draft-relay/internal/apperror"
	"draft-relay/internal/logger"
	"draft-relay/internal/model"
)

// SMTPNotifier e-mails notifications to the target address.
type SMTPNotifier struct {
	from   string
	send   func(m *gomail.Message) error
	logger *logger.Logger
}

func NewSMTPNotifier(host string, port int, username, password, from string, logger *logger.Logger) *SMTPNotifier {
	dialer := gomail.NewDialer(host, port, username, password)
	return &SMTPNotifier{
		from:   from,
		send:   func(m *gomail.Message) error { return dialer.DialAndSend(m) },
		logger: logger,
	}
}

func (s *SMTPNotifier) Announce(ctx context.Context, target string, n *model.Notification) (string, error) {
	if target == "" {
		return "", fmt.Errorf("no notification target")
	}
	subject, body := Format(n)
	deliveryID := uuid.New().String()

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", target)
	m.SetHeader("Subject", subject)
	m.SetHeader("X-Draft-Relay-Delivery", deliveryID)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() { done <- s.send(m) }()
	select {
	case <-ctx.Done():
		return "", apperror.Upstream("smtp notify", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", apperror.Upstream("smtp notify", err)
		}
	}

	s.logger.Info("Notification e-mailed to", target, n.Kind)
	return deliveryID, nil
}
