// Package share opens review sessions from share links and keeps them alive
// while a client is reviewing.
package share

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/outbox"
	"github.com/heartmarshall/proofdesk/internal/review"
)

// projectStore defines the data store reads needed by the share service.
type projectStore interface {
	LoadProjectByShareID(ctx context.Context, shareID string) (*domain.Project, error)
	LoadBundles(ctx context.Context, projectID uuid.UUID) ([]domain.FileBundle, error)
}

// tokenIssuer defines the session token interface needed by the share service.
type tokenIssuer interface {
	Issue(sessionID string, projectID uuid.UUID) (string, error)
}

// reconciler reports drift between a session and the data store.
type reconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID, local []domain.FileBundle) ([]outbox.Drift, error)
}

// Service opens and tracks review sessions.
type Service struct {
	log        *slog.Logger
	store      projectStore
	tokens     tokenIssuer
	reconciler reconciler
	cache      review.BlobCache
	persist    review.Persister
	cfg        config.ReviewConfig

	mu       sync.Mutex
	sessions map[string]*review.Session
	now      func() time.Time
	newID    func() string
}

// NewService creates a new share service.
func NewService(
	logger *slog.Logger,
	cfg config.ReviewConfig,
	store projectStore,
	tokens tokenIssuer,
	reconciler reconciler,
	cache review.BlobCache,
	persist review.Persister,
) *Service {
	return &Service{
		log:        logger.With("service", "share"),
		store:      store,
		tokens:     tokens,
		reconciler: reconciler,
		cache:      cache,
		persist:    persist,
		cfg:        cfg,
		sessions:   make(map[string]*review.Session),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}
