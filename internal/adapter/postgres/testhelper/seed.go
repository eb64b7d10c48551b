package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedProject creates an active project without a password.
func SeedProject(t *testing.T, pool *pgxpool.Pool) domain.Project {
	t.Helper()

	suffix := uniqueSuffix()
	p := domain.Project{
		ID:        uuid.New(),
		Name:      "Project " + suffix,
		ShareID:   "share-" + suffix,
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO projects (id, name, share_id, active, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.ShareID, p.Active, p.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedProject: %v", err)
	}
	return p
}

// SeedFile creates a pending file with one version that is current.
// Files are positioned in creation order.
func SeedFile(t *testing.T, pool *pgxpool.Pool, projectID uuid.UUID, format domain.FileFormat) domain.FileBundle {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	v := domain.Version{
		ID:        uuid.New(),
		URL:       "https://cdn.test/" + suffix,
		CreatedAt: now,
	}
	f := domain.File{
		ID:               uuid.New(),
		ProjectID:        projectID,
		Name:             "file-" + suffix,
		Format:           format,
		Status:           domain.FileStatusPending,
		CurrentVersionID: &v.ID,
		CreatedAt:        now,
	}
	v.FileID = f.ID

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("testhelper: SeedFile begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO files (id, project_id, name, format, status, current_version_id, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6,
		         (SELECT COUNT(*) FROM files WHERE project_id = $2), $7)`,
		f.ID, f.ProjectID, f.Name, string(f.Format), string(f.Status), v.ID, f.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedFile insert file: %v", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO versions (id, file_id, url, created_at) VALUES ($1, $2, $3, $4)`,
		v.ID, v.FileID, v.URL, v.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedFile insert version: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("testhelper: SeedFile commit: %v", err)
	}

	return domain.FileBundle{
		File:           f,
		CurrentVersion: &v,
		Versions:       []domain.Version{v},
	}
}
