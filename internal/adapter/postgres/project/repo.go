// Package project implements project persistence using PostgreSQL.
package project

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

var columns = []string{"id", "name", "description", "share_id", "password_hash", "active", "created_at"}

type row struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Description  *string   `db:"description"`
	ShareID      string    `db:"share_id"`
	PasswordHash *string   `db:"password_hash"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r row) toDomain() *domain.Project {
	return &domain.Project{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		ShareID:      r.ShareID,
		PasswordHash: r.PasswordHash,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
	}
}

// Repo provides project persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new project repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a project by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, id)
}

// GetByShareID returns the project behind a share link. Inactive projects
// are returned as well; callers decide what inactive means for them.
func (r *Repo) GetByShareID(ctx context.Context, shareID string) (*domain.Project, error) {
	if shareID == "" {
		return nil, domain.NewValidationError("share_id", "required")
	}
	return r.getOne(ctx, squirrel.Eq{"share_id": shareID}, shareID)
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Eq, key any) (*domain.Project, error) {
	query, args, err := postgres.Builder.
		Select(columns...).
		From("projects").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project query: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &out, query, args...); err != nil {
		return nil, postgres.MapError(err, "project", key)
	}
	return out.toDomain(), nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a project. Zero ID and CreatedAt are filled in.
func (r *Repo) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if p.Name == "" {
		return nil, domain.NewValidationError("name", "required")
	}
	if p.ShareID == "" {
		return nil, domain.NewValidationError("share_id", "required")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query, args, err := postgres.Builder.
		Insert("projects").
		Columns(columns...).
		Values(p.ID, p.Name, p.Description, p.ShareID, p.PasswordHash, p.Active, p.CreatedAt).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project insert: %w", err)
	}

	var out row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &out, query, args...); err != nil {
		return nil, postgres.MapError(err, "project", p.ID)
	}
	return out.toDomain(), nil
}

// SetActive toggles whether the share link can be opened.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query, args, err := postgres.Builder.
		Update("projects").
		Set("active", active).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build project update: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "project", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
