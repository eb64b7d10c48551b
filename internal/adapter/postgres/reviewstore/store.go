// Package reviewstore assembles the review data store from the project, file
// and feedback repositories.
package reviewstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	postgres "github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/feedback"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/file"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/project"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/outbox"
)

var (
	_ outbox.Writer = (*Store)(nil)
	_ outbox.Source = (*Store)(nil)
)

// Store is the data store behind review sessions.
type Store struct {
	projects *project.Repo
	files    *file.Repo
	feedback *feedback.Repo
	tx       *postgres.TxManager
}

// New creates a Store on db.
func New(db postgres.DB) *Store {
	return &Store{
		projects: project.New(db),
		files:    file.New(db),
		feedback: feedback.New(db),
		tx:       postgres.NewTxManager(db),
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadProjectByShareID returns the project behind a share link.
func (s *Store) LoadProjectByShareID(ctx context.Context, shareID string) (*domain.Project, error) {
	return s.projects.GetByShareID(ctx, shareID)
}

// LoadProject returns a project by id.
func (s *Store) LoadProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// LoadBundles returns every file of a project with its versions and feedback.
func (s *Store) LoadBundles(ctx context.Context, projectID uuid.UUID) ([]domain.FileBundle, error) {
	files, err := s.files.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.assemble(ctx, files)
}

// LoadBundle returns a single file with its versions and feedback.
func (s *Store) LoadBundle(ctx context.Context, fileID uuid.UUID) (domain.FileBundle, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return domain.FileBundle{}, err
	}
	bundles, err := s.assemble(ctx, []domain.File{f})
	if err != nil {
		return domain.FileBundle{}, err
	}
	return bundles[0], nil
}

func (s *Store) assemble(ctx context.Context, files []domain.File) ([]domain.FileBundle, error) {
	ids := make([]uuid.UUID, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}

	versions, err := s.files.ListVersions(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.feedback.ListByFiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	bundles := make([]domain.FileBundle, len(files))
	for i, f := range files {
		b := domain.FileBundle{
			File:     f,
			Versions: versions[f.ID],
			Feedback: comments[f.ID],
		}
		if f.CurrentVersionID != nil {
			b.CurrentVersion = b.FindVersion(*f.CurrentVersionID)
		}
		bundles[i] = b
	}
	return bundles, nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// UpdateFileStatus sets the review status of a file.
func (s *Store) UpdateFileStatus(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error {
	return s.files.UpdateStatus(ctx, fileID, status)
}

// InsertFeedback stores feedback under its client-generated id.
func (s *Store) InsertFeedback(ctx context.Context, fb domain.Feedback) error {
	return s.feedback.Insert(ctx, fb)
}

// InsertVersion stores a new version without making it current.
func (s *Store) InsertVersion(ctx context.Context, v *domain.Version) error {
	return s.files.InsertVersion(ctx, v)
}

// SetCurrentVersion repoints a file at an existing version.
func (s *Store) SetCurrentVersion(ctx context.Context, fileID, versionID uuid.UUID) error {
	return s.files.SetCurrentVersion(ctx, fileID, versionID)
}

// ReplaceVersion uploads new content for a file: it inserts v, makes it
// current and resets the file to pending, all in one transaction.
func (s *Store) ReplaceVersion(ctx context.Context, v *domain.Version) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.files.InsertVersion(ctx, v); err != nil {
			return err
		}
		if err := s.files.SetCurrentVersion(ctx, v.FileID, v.ID); err != nil {
			return err
		}
		return s.files.UpdateStatus(ctx, v.FileID, domain.FileStatusPending)
	})
	if err != nil {
		return fmt.Errorf("replace version of file %s: %w", v.FileID, err)
	}
	return nil
}
