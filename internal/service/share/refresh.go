package share

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartmarshall/proofdesk/internal/outbox"
	"github.com/heartmarshall/proofdesk/internal/review"
)

// Refresh pulls the data store state into every live session: replaced
// versions are adopted, then the optimistic state is reconciled. Errors are
// logged per session.
func (s *Service) Refresh(ctx context.Context) []outbox.Drift {
	var all []outbox.Drift
	for _, session := range s.live() {
		if ctx.Err() != nil {
			break
		}
		drifts, err := s.refresh(ctx, session)
		if err != nil {
			s.log.WarnContext(ctx, "session refresh failed",
				slog.String("session_id", session.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		all = append(all, drifts...)
	}
	return all
}

func (s *Service) refresh(ctx context.Context, session *review.Session) ([]outbox.Drift, error) {
	projectID := session.Project().ID

	remote, err := s.store.LoadBundles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := session.Sync(remote); err != nil {
		return nil, err
	}
	if s.reconciler == nil {
		return nil, nil
	}
	return s.reconciler.Reconcile(ctx, projectID, session.Snapshot())
}

// defaultRefreshInterval applies when Run is given a non-positive interval.
const defaultRefreshInterval = 5 * time.Minute

// Run sweeps idle sessions and refreshes live ones every interval until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
			s.Refresh(ctx)
		}
	}
}
