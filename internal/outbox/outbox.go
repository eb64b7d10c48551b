// Package outbox turns optimistic review actions into durable, retried
// writes against the data store and best-effort owner notifications.
//
// Items are processed one at a time in enqueue order, so writes for the
// same file reach the store in the order the actions happened.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Store persists outbox items.
type Store interface {
	Add(ctx context.Context, item domain.OutboxItem) error
	// Claim moves up to limit pending items to processing, oldest first.
	Claim(ctx context.Context, limit int) ([]domain.OutboxItem, error)
	Finish(ctx context.Context, id uuid.UUID, status domain.OutboxStatus, attempts int, lastErr *string) error
	Stats(ctx context.Context) (domain.OutboxStats, error)
	List(ctx context.Context, status domain.OutboxStatus, limit int) ([]domain.OutboxItem, error)
	RetryFailed(ctx context.Context) (int, error)
	ResetProcessing(ctx context.Context) (int, error)
	// InFlight returns pending and processing items, oldest first.
	InFlight(ctx context.Context) ([]domain.OutboxItem, error)
	// Prune deletes done and failed items last updated before cutoff.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Writer applies review writes to the data store.
type Writer interface {
	UpdateFileStatus(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error
	InsertFeedback(ctx context.Context, fb domain.Feedback) error
}

// Notifier delivers owner notifications.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Result summarizes one processing pass.
type Result struct {
	Done   int
	Failed int
}

// Outbox is safe for concurrent use.
type Outbox struct {
	store    Store
	writer   Writer
	notifier Notifier
	cfg      config.OutboxConfig
	log      *slog.Logger
	now      func() time.Time

	wake   chan struct{}
	procMu sync.Mutex
}

// Fallbacks for zero backoff settings; go-retry rejects a zero base.
const (
	defaultBaseBackoff = 200 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
)

// New creates an Outbox.
func New(cfg config.OutboxConfig, store Store, writer Writer, notifier Notifier, log *slog.Logger) *Outbox {
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(defaultMaxBackoff, cfg.BaseBackoff)
	}
	return &Outbox{
		store:    store,
		writer:   writer,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With("service", "outbox"),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// ---------------------------------------------------------------------------
// Producer side
// ---------------------------------------------------------------------------

// EnqueueStatus records a file status write.
func (o *Outbox) EnqueueStatus(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error {
	return o.enqueue(ctx, domain.OutboxUpdateStatus, fileID, domain.StatusUpdate{FileID: fileID, Status: status})
}

// EnqueueFeedback records a feedback insert.
func (o *Outbox) EnqueueFeedback(ctx context.Context, fb domain.Feedback) error {
	return o.enqueue(ctx, domain.OutboxInsertFeedback, fb.FileID, domain.FeedbackInsert{Feedback: fb})
}

// EnqueueNotification records an owner notification.
func (o *Outbox) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	return o.enqueue(ctx, domain.OutboxNotify, n.FileID, n)
}

func (o *Outbox) enqueue(ctx context.Context, kind domain.OutboxKind, fileID uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode %s payload: %w", kind, err)
	}

	now := o.now().UTC()
	item := domain.OutboxItem{
		ID:        uuid.New(),
		Kind:      kind,
		FileID:    fileID,
		Payload:   raw,
		Status:    domain.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.Add(ctx, item); err != nil {
		return fmt.Errorf("outbox: add %s: %w", kind, err)
	}

	o.log.DebugContext(ctx, "outbox item enqueued",
		slog.String("kind", string(kind)),
		slog.String("file_id", fileID.String()),
		slog.String("item_id", item.ID.String()),
	)

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// ---------------------------------------------------------------------------
// Consumer side
// ---------------------------------------------------------------------------

// Run processes items until ctx is cancelled. Items left in processing by a
// previous crash are requeued first.
func (o *Outbox) Run(ctx context.Context) error {
	if n, err := o.store.ResetProcessing(ctx); err != nil {
		return fmt.Errorf("outbox: reset processing: %w", err)
	} else if n > 0 {
		o.log.InfoContext(ctx, "requeued stuck outbox items", slog.Int("count", n))
	}

	poll := o.cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if _, err := o.Flush(ctx); err != nil && ctx.Err() == nil {
			o.log.ErrorContext(ctx, "outbox pass failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-o.wake:
		case <-ticker.C:
		}
	}
}

// Flush processes pending items until none are left or ctx is done.
func (o *Outbox) Flush(ctx context.Context) (Result, error) {
	o.procMu.Lock()
	defer o.procMu.Unlock()

	var total Result
	batch := o.cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}

	for ctx.Err() == nil {
		items, err := o.store.Claim(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("outbox: claim: %w", err)
		}
		if len(items) == 0 {
			return total, nil
		}

		for i, item := range items {
			if ctx.Err() != nil {
				o.requeue(items[i:])
				return total, ctx.Err()
			}
			if o.process(ctx, item) {
				total.Done++
			} else {
				total.Failed++
			}
		}
	}
	return total, ctx.Err()
}

// requeue puts claimed but unprocessed items back to pending.
func (o *Outbox) requeue(items []domain.OutboxItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, item := range items {
		if err := o.store.Finish(ctx, item.ID, domain.OutboxStatusPending, item.Attempts, item.LastError); err != nil {
			o.log.Error("requeue outbox item", slog.String("item_id", item.ID.String()), slog.String("error", err.Error()))
		}
	}
}

// process delivers one item and records the outcome. It reports whether the
// item reached a successful terminal state.
func (o *Outbox) process(ctx context.Context, item domain.OutboxItem) bool {
	attempts := item.Attempts
	log := o.log.With(
		slog.String("item_id", item.ID.String()),
		slog.String("kind", string(item.Kind)),
		slog.String("file_id", item.FileID.String()),
	)

	// Notifications are best effort: one attempt, failure ignored.
	if item.Kind == domain.OutboxNotify {
		attempts++
		var lastErr *string
		if err := o.dispatch(ctx, item); err != nil {
			msg := err.Error()
			lastErr = &msg
			log.DebugContext(ctx, "notification dropped", slog.String("error", msg))
		}
		o.finish(ctx, log, item, domain.OutboxStatusDone, attempts, lastErr)
		return true
	}

	remaining := o.cfg.MaxAttempts - attempts
	if remaining < 1 {
		remaining = 1
	}
	backoff := retry.NewExponential(o.cfg.BaseBackoff)
	backoff = retry.WithCappedDuration(o.cfg.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(remaining-1), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := o.dispatch(ctx, item)
		if err == nil || isPermanent(err) {
			return err
		}
		log.WarnContext(ctx, "outbox delivery failed, will retry",
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()),
		)
		return retry.RetryableError(err)
	})

	if err == nil {
		o.finish(ctx, log, item, domain.OutboxStatusDone, attempts, nil)
		return true
	}

	msg := err.Error()
	if ctx.Err() != nil {
		o.finish(context.WithoutCancel(ctx), log, item, domain.OutboxStatusPending, attempts, &msg)
		return false
	}

	log.ErrorContext(ctx, "outbox item abandoned",
		slog.Int("attempts", attempts),
		slog.String("error", msg),
	)
	o.finish(ctx, log, item, domain.OutboxStatusFailed, attempts, &msg)
	return false
}

func (o *Outbox) finish(ctx context.Context, log *slog.Logger, item domain.OutboxItem, status domain.OutboxStatus, attempts int, lastErr *string) {
	if err := o.store.Finish(ctx, item.ID, status, attempts, lastErr); err != nil {
		log.ErrorContext(ctx, "record outbox outcome", slog.String("error", err.Error()))
	}
}

func (o *Outbox) dispatch(ctx context.Context, item domain.OutboxItem) error {
	switch item.Kind {
	case domain.OutboxUpdateStatus:
		var p domain.StatusUpdate
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		return o.writer.UpdateFileStatus(ctx, p.FileID, p.Status)

	case domain.OutboxInsertFeedback:
		var p domain.FeedbackInsert
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		err := o.writer.InsertFeedback(ctx, p.Feedback)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// An earlier attempt landed before its response was lost.
			return nil
		}
		return err

	case domain.OutboxNotify:
		var p domain.Notification
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return permanent(fmt.Errorf("decode payload: %w", err))
		}
		return o.notifier.Notify(ctx, p)
	}
	return permanent(fmt.Errorf("unknown outbox kind %q", item.Kind))
}

// Stats returns queue counts by status.
func (o *Outbox) Stats(ctx context.Context) (domain.OutboxStats, error) {
	return o.store.Stats(ctx)
}

// RetryFailed moves failed items back to pending with a fresh attempt budget.
func (o *Outbox) RetryFailed(ctx context.Context) (int, error) {
	n, err := o.store.RetryFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: retry failed: %w", err)
	}
	if n > 0 {
		select {
		case o.wake <- struct{}{}:
		default:
		}
	}
	return n, nil
}

// Prune drops delivered and abandoned items older than age.
func (o *Outbox) Prune(ctx context.Context, age time.Duration) (int, error) {
	n, err := o.store.Prune(ctx, o.now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("outbox: prune: %w", err)
	}
	return n, nil
}

// Failed lists abandoned items.
func (o *Outbox) Failed(ctx context.Context, limit int) ([]domain.OutboxItem, error) {
	return o.store.List(ctx, domain.OutboxStatusFailed, limit)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// isPermanent reports errors a retry cannot fix.
func isPermanent(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, context.Canceled)
}
