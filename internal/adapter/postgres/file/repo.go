// Package file implements persistence of files and their versions using PostgreSQL.
package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

var (
	fileColumns    = []string{"id", "project_id", "name", "format", "status", "current_version_id", "created_at"}
	versionColumns = []string{"id", "file_id", "url", "thumbnail_url", "created_at"}
)

type fileRow struct {
	ID               uuid.UUID  `db:"id"`
	ProjectID        uuid.UUID  `db:"project_id"`
	Name             string     `db:"name"`
	Format           string     `db:"format"`
	Status           string     `db:"status"`
	CurrentVersionID *uuid.UUID `db:"current_version_id"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (r fileRow) toDomain() domain.File {
	return domain.File{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Name:             r.Name,
		Format:           domain.FileFormat(r.Format),
		Status:           domain.FileStatus(r.Status),
		CurrentVersionID: r.CurrentVersionID,
		CreatedAt:        r.CreatedAt,
	}
}

type versionRow struct {
	ID           uuid.UUID `db:"id"`
	FileID       uuid.UUID `db:"file_id"`
	URL          string    `db:"url"`
	ThumbnailURL *string   `db:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r versionRow) toDomain() domain.Version {
	return domain.Version{
		ID:           r.ID,
		FileID:       r.FileID,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		CreatedAt:    r.CreatedAt,
	}
}

// Repo provides file and version persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new file repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

// GetByID returns a file by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.File, error) {
	query, args, err := postgres.Builder.
		Select(fileColumns...).
		From("files").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.File{}, fmt.Errorf("build file query: %w", err)
	}

	var out fileRow
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &out, query, args...); err != nil {
		return domain.File{}, postgres.MapError(err, "file", id)
	}
	return out.toDomain(), nil
}

// ListByProject returns the files of a project in display order.
func (r *Repo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.File, error) {
	query, args, err := postgres.Builder.
		Select(fileColumns...).
		From("files").
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("position", "created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build file list: %w", err)
	}

	var rows []fileRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list files of project %s: %w", projectID, err)
	}

	files := make([]domain.File, len(rows))
	for i, row := range rows {
		files[i] = row.toDomain()
	}
	return files, nil
}

// Create inserts a file. Zero ID, Status and CreatedAt are filled in.
func (r *Repo) Create(ctx context.Context, f *domain.File) error {
	if f.Name == "" {
		return domain.NewValidationError("name", "required")
	}
	if !f.Format.IsValid() {
		return domain.NewValidationError("format", "must be image, video or pdf")
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = domain.FileStatusPending
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	query, args, err := postgres.Builder.
		Insert("files").
		Columns(fileColumns...).
		Values(f.ID, f.ProjectID, f.Name, string(f.Format), string(f.Status), f.CurrentVersionID, f.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build file insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "file", f.ID)
	}
	return nil
}

// UpdateStatus sets the review status of a file.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FileStatus) error {
	if !status.IsValid() {
		return domain.NewValidationError("status", "unknown file status")
	}
	return r.update(ctx, id, squirrel.Eq{"status": string(status)})
}

// SetCurrentVersion repoints the file at one of its versions.
func (r *Repo) SetCurrentVersion(ctx context.Context, id, versionID uuid.UUID) error {
	return r.update(ctx, id, squirrel.Eq{"current_version_id": versionID})
}

func (r *Repo) update(ctx context.Context, id uuid.UUID, set map[string]any) error {
	query, args, err := postgres.Builder.
		Update("files").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build file update: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "file", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Versions
// ---------------------------------------------------------------------------

// ListVersions returns the versions of the given files newest first, grouped
// by file id.
func (r *Repo) ListVersions(ctx context.Context, fileIDs []uuid.UUID) (map[uuid.UUID][]domain.Version, error) {
	out := make(map[uuid.UUID][]domain.Version, len(fileIDs))
	if len(fileIDs) == 0 {
		return out, nil
	}

	query, args, err := postgres.Builder.
		Select(versionColumns...).
		From("versions").
		Where("file_id = ANY(?)", fileIDs).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build version list: %w", err)
	}

	var rows []versionRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	for _, row := range rows {
		out[row.FileID] = append(out[row.FileID], row.toDomain())
	}
	return out, nil
}

// InsertVersion stores a new immutable version. It does not repoint the file.
func (r *Repo) InsertVersion(ctx context.Context, v *domain.Version) error {
	if strings.TrimSpace(v.URL) == "" {
		return domain.NewValidationError("url", "required")
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	query, args, err := postgres.Builder.
		Insert("versions").
		Columns(versionColumns...).
		Values(v.ID, v.FileID, v.URL, v.ThumbnailURL, v.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build version insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "version", v.ID)
	}
	return nil
}
