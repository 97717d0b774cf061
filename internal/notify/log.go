package notify

import (
	"context"

	"github.com/google/uuid"

	"draft-relay/internal/logger"
	"draft-relay/internal/model"
)

// LogNotifier writes notifications to the log. Used in development.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Announce(ctx context.Context, target string, n *model.Notification) (string, error) {
	subject, body := Format(n)
	l.logger.WithFields(map[string]interface{}{
		"target": target,
		"kind":   n.Kind,
	}).Info(subject + "\n" + body)
	return uuid.New().String(), nil
}
