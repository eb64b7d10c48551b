package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWebhook(url string) *Webhook {
	w := NewWebhook(url, 2*time.Second, newTestLogger())
	w.sleep = func(time.Duration) {}
	w.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestWebhook_Notify_Success(t *testing.T) {
	t.Parallel()

	n := domain.Notification{
		Kind:      domain.NotificationApproved,
		ProjectID: uuid.New(),
		FileID:    uuid.New(),
		FileName:  "hero.png",
	}

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newTestWebhook(srv.URL).Notify(context.Background(), n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["kind"] != "approved" {
		t.Errorf("kind = %v, want approved", got["kind"])
	}
	if got["file_name"] != "hero.png" {
		t.Errorf("file_name = %v, want hero.png", got["file_name"])
	}
	if got["sent_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("sent_at = %v", got["sent_at"])
	}
}

func TestWebhook_Notify_ServerErrorRetrySuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestWebhook(srv.URL).Notify(context.Background(), domain.Notification{Kind: domain.NotificationFeedback})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestWebhook_Notify_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	err := newTestWebhook(srv.URL).Notify(context.Background(), domain.Notification{Kind: domain.NotificationAllApproved})
	if err == nil {
		t.Fatal("expected error for 410")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestWebhook_Notify_BothAttemptsFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := newTestWebhook(srv.URL).Notify(context.Background(), domain.Notification{}); err == nil {
		t.Fatal("expected error when both attempts fail")
	}
}

func TestNew_SelectsNotifier(t *testing.T) {
	t.Parallel()

	if n, err := New(config.NotifyConfig{Type: "log"}, newTestLogger()); err != nil {
		t.Fatalf("log: %v", err)
	} else if _, ok := n.(*Log); !ok {
		t.Errorf("log: got %T", n)
	}

	if n, err := New(config.NotifyConfig{Type: "webhook", WebhookURL: "http://hooks.test"}, newTestLogger()); err != nil {
		t.Fatalf("webhook: %v", err)
	} else if _, ok := n.(*Webhook); !ok {
		t.Errorf("webhook: got %T", n)
	}

	if _, err := New(config.NotifyConfig{Type: "webhook"}, newTestLogger()); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("webhook without url: err = %v, want ErrValidation", err)
	}
	if _, err := New(config.NotifyConfig{Type: "smtp"}, newTestLogger()); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown type: err = %v, want ErrValidation", err)
	}
}

func TestLog_Notify(t *testing.T) {
	t.Parallel()

	if err := NewLog(newTestLogger()).Notify(context.Background(), domain.Notification{Kind: domain.NotificationFeedback}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
