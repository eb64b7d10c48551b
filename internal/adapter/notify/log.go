package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Log writes notifications to the application log. Used when no webhook is set up.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{log: logger.With("adapter", "notify_log")}
}

// Notify implements outbox.Notifier.
func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	l.log.InfoContext(ctx, "owner notification",
		slog.String("kind", n.Kind.String()),
		slog.String("project_id", n.ProjectID.String()),
		slog.String("file_id", n.FileID.String()),
		slog.String("file_name", n.FileName),
	)
	return nil
}

// Notifier is the interface shared by Webhook and Log.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// New picks the notifier configured by cfg.Type.
func New(cfg config.NotifyConfig, logger *slog.Logger) (Notifier, error) {
	switch cfg.Type {
	case "log", "":
		return NewLog(logger), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("notify: webhook_url is required: %w", domain.ErrValidation)
		}
		return NewWebhook(cfg.WebhookURL, cfg.Timeout, logger), nil
	}
	return nil, fmt.Errorf("notify: unknown type %q: %w", cfg.Type, domain.ErrValidation)
}
