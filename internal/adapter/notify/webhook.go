// Package notify delivers owner notifications about client review activity.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

const retryDelay = 500 * time.Millisecond

type webhookPayload struct {
	domain.Notification
	SentAt time.Time `json:"sent_at"`
}

// Webhook POSTs notifications as JSON to a fixed URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewWebhook creates a Webhook notifier.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "webhook"),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Notify sends n. A 2xx response is success.
func (w *Webhook) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(webhookPayload{Notification: n, SentAt: w.now().UTC()})
	if err != nil {
		return fmt.Errorf("webhook: encode: %w", err)
	}

	resp, err := w.doWithRetry(ctx, body, n.Kind)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	w.log.DebugContext(ctx, "notification sent",
		slog.String("kind", n.Kind.String()),
		slog.String("file_id", n.FileID.String()),
	)
	return nil
}

// doWithRetry executes the request with a single retry on 5xx or network errors.
func (w *Webhook) doWithRetry(ctx context.Context, body []byte, kind domain.NotificationKind) (*http.Response, error) {
	resp, err := w.do(ctx, body)

	shouldRetry := err != nil || resp.StatusCode >= 500
	if !shouldRetry || ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
		resp.Body.Close()
	}
	w.log.WarnContext(ctx, "webhook retry", slog.String("kind", kind.String()), slog.String("reason", reason))

	w.sleep(retryDelay)

	return w.do(ctx, body)
}

func (w *Webhook) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return w.httpClient.Do(req)
}
