package share

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/proofdesk/internal/auth"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/review"
)

// OpenResult is returned when a share link was accepted.
type OpenResult struct {
	Session *review.Session
	Token   string
}

// Open validates a share link and starts a review session. Inactive and
// unknown projects are indistinguishable (domain.ErrNotFound); a wrong or
// missing password yields domain.ErrUnauthorized.
func (s *Service) Open(ctx context.Context, in OpenInput) (*OpenResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	project, err := s.store.LoadProjectByShareID(ctx, in.ShareID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.Active {
		return nil, fmt.Errorf("project %s: %w", in.ShareID, domain.ErrNotFound)
	}

	if project.HasPassword() {
		ok, err := auth.CheckPassword(*project.PasswordHash, in.Password)
		if err != nil {
			return nil, fmt.Errorf("check share password: %w", err)
		}
		if !ok {
			s.log.WarnContext(ctx, "share password rejected", slog.String("share_id", in.ShareID))
			return nil, domain.ErrUnauthorized
		}
	}

	bundles, err := s.store.LoadBundles(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("load bundles: %w", err)
	}

	id := s.newID()
	token, err := s.tokens.Issue(id, project.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	session := review.NewSession(s.log, s.cfg, id, *project, bundles, s.cache, s.persist)
	s.register(session)

	s.log.InfoContext(ctx, "review session opened",
		slog.String("session_id", id),
		slog.String("project_id", project.ID.String()),
		slog.Int("files", len(bundles)),
	)

	return &OpenResult{Session: session, Token: token}, nil
}
