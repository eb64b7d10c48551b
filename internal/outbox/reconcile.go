package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Source loads the store-confirmed state of a project.
type Source interface {
	LoadBundles(ctx context.Context, projectID uuid.UUID) ([]domain.FileBundle, error)
}

// DriftKind classifies a divergence between local and stored state.
type DriftKind string

const (
	DriftStatus          DriftKind = "status"
	DriftMissingFeedback DriftKind = "missing_feedback"
	DriftMissingFile     DriftKind = "missing_file"
)

// Drift is one divergence found by reconciliation.
type Drift struct {
	Kind       DriftKind  `json:"kind"`
	FileID     uuid.UUID  `json:"file_id"`
	FileName   string     `json:"file_name"`
	Local      string     `json:"local,omitempty"`
	Remote     string     `json:"remote,omitempty"`
	FeedbackID *uuid.UUID `json:"feedback_id,omitempty"`
}

// Reconciler compares optimistic local state with the data store.
type Reconciler struct {
	source Source
	store  Store
	log    *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(source Source, store Store, log *slog.Logger) *Reconciler {
	return &Reconciler{
		source: source,
		store:  store,
		log:    log.With("service", "reconciler"),
	}
}

// Reconcile reports where local differs from the store. Writes still in
// flight are replayed onto the stored view first, so only divergence they
// will not resolve is reported.
func (r *Reconciler) Reconcile(ctx context.Context, projectID uuid.UUID, local []domain.FileBundle) ([]Drift, error) {
	remote, err := r.source.LoadBundles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load bundles: %w", err)
	}

	inFlight, err := r.store.InFlight(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: in-flight items: %w", err)
	}

	drifts := Diff(local, r.applyItems(ctx, remote, inFlight))

	for _, d := range drifts {
		r.log.WarnContext(ctx, "review state drift",
			slog.String("project_id", projectID.String()),
			slog.String("kind", string(d.Kind)),
			slog.String("file_id", d.FileID.String()),
			slog.String("local", d.Local),
			slog.String("remote", d.Remote),
		)
	}
	return drifts, nil
}

// ReconcileFailed reports abandoned writes for projectID that the store
// still does not reflect.
func (r *Reconciler) ReconcileFailed(ctx context.Context, projectID uuid.UUID) ([]Drift, error) {
	remote, err := r.source.LoadBundles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load bundles: %w", err)
	}
	failed, err := r.store.List(ctx, domain.OutboxStatusFailed, 0)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list failed: %w", err)
	}

	drifts := Diff(r.applyItems(ctx, remote, failed), remote)
	for _, d := range drifts {
		r.log.WarnContext(ctx, "abandoned write not in store",
			slog.String("project_id", projectID.String()),
			slog.String("kind", string(d.Kind)),
			slog.String("file_id", d.FileID.String()),
		)
	}
	return drifts, nil
}

// applyItems returns a copy of remote with items replayed in order. Items
// for files outside remote are ignored.
func (r *Reconciler) applyItems(ctx context.Context, remote []domain.FileBundle, items []domain.OutboxItem) []domain.FileBundle {
	out := make([]domain.FileBundle, len(remote))
	index := make(map[uuid.UUID]int, len(remote))
	for i := range remote {
		out[i] = remote[i].Clone()
		index[remote[i].File.ID] = i
	}

	for _, item := range items {
		i, ok := index[item.FileID]
		if !ok {
			continue
		}
		if err := replay(&out[i], item); err != nil {
			r.log.WarnContext(ctx, "skip unreadable outbox item",
				slog.String("item_id", item.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return out
}

func replay(b *domain.FileBundle, item domain.OutboxItem) error {
	switch item.Kind {
	case domain.OutboxUpdateStatus:
		var p domain.StatusUpdate
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return err
		}
		b.File.Status = p.Status
	case domain.OutboxInsertFeedback:
		var p domain.FeedbackInsert
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return err
		}
		for _, fb := range b.Feedback {
			if fb.ID == p.Feedback.ID {
				return nil
			}
		}
		b.Feedback = append([]domain.Feedback{p.Feedback}, b.Feedback...)
	}
	return nil
}

// Diff lists divergences of local from remote, in local order.
func Diff(local, remote []domain.FileBundle) []Drift {
	byID := make(map[uuid.UUID]*domain.FileBundle, len(remote))
	for i := range remote {
		byID[remote[i].File.ID] = &remote[i]
	}

	var out []Drift
	for _, l := range local {
		r, ok := byID[l.File.ID]
		if !ok {
			out = append(out, Drift{
				Kind:     DriftMissingFile,
				FileID:   l.File.ID,
				FileName: l.File.Name,
			})
			continue
		}

		if l.File.Status != r.File.Status {
			out = append(out, Drift{
				Kind:     DriftStatus,
				FileID:   l.File.ID,
				FileName: l.File.Name,
				Local:    l.File.Status.String(),
				Remote:   r.File.Status.String(),
			})
		}

		stored := make(map[uuid.UUID]struct{}, len(r.Feedback))
		for _, fb := range r.Feedback {
			stored[fb.ID] = struct{}{}
		}
		for _, fb := range l.Feedback {
			if _, ok := stored[fb.ID]; ok {
				continue
			}
			id := fb.ID
			out = append(out, Drift{
				Kind:       DriftMissingFeedback,
				FileID:     l.File.ID,
				FileName:   l.File.Name,
				Local:      fb.Text,
				FeedbackID: &id,
			})
		}
	}
	return out
}
