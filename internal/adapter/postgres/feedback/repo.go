// Package feedback implements client feedback persistence using PostgreSQL.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

var columns = []string{
	"id", "file_id", "version_id", "text",
	"markup_x", "markup_y", "markup_timestamp", "markup_page",
	"created_at",
}

type row struct {
	ID              uuid.UUID  `db:"id"`
	FileID          uuid.UUID  `db:"file_id"`
	VersionID       *uuid.UUID `db:"version_id"`
	Text            string     `db:"text"`
	MarkupX         *float64   `db:"markup_x"`
	MarkupY         *float64   `db:"markup_y"`
	MarkupTimestamp *float64   `db:"markup_timestamp"`
	MarkupPage      *int32     `db:"markup_page"`
	CreatedAt       time.Time  `db:"created_at"`
}

func (r row) toDomain() domain.Feedback {
	fb := domain.Feedback{
		ID:        r.ID,
		FileID:    r.FileID,
		VersionID: r.VersionID,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
	if r.MarkupX != nil && r.MarkupY != nil {
		loc := domain.Locator{X: *r.MarkupX, Y: *r.MarkupY, Timestamp: r.MarkupTimestamp}
		if r.MarkupPage != nil {
			p := int(*r.MarkupPage)
			loc.Page = &p
		}
		fb.Locator = &loc
	}
	return fb
}

// Repo provides feedback persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new feedback repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ListByFiles returns feedback for the given files newest first, grouped by file id.
func (r *Repo) ListByFiles(ctx context.Context, fileIDs []uuid.UUID) (map[uuid.UUID][]domain.Feedback, error) {
	out := make(map[uuid.UUID][]domain.Feedback, len(fileIDs))
	if len(fileIDs) == 0 {
		return out, nil
	}

	query, args, err := postgres.Builder.
		Select(columns...).
		From("feedback").
		Where("file_id = ANY(?)", fileIDs).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build feedback list: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	for _, row := range rows {
		out[row.FileID] = append(out[row.FileID], row.toDomain())
	}
	return out, nil
}

// Insert stores feedback under its client-generated id. Inserting the same id
// twice returns domain.ErrAlreadyExists.
func (r *Repo) Insert(ctx context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.Text) == "" {
		return domain.NewValidationError("text", "required")
	}
	if fb.ID == uuid.Nil {
		return domain.NewValidationError("id", "required")
	}
	if fb.Locator != nil {
		if err := fb.Locator.Validate(); err != nil {
			return err
		}
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	var x, y, ts *float64
	var page *int32
	if loc := fb.Locator; loc != nil {
		x, y, ts = &loc.X, &loc.Y, loc.Timestamp
		if loc.Page != nil {
			p := int32(*loc.Page)
			page = &p
		}
	}

	query, args, err := postgres.Builder.
		Insert("feedback").
		Columns(columns...).
		Values(fb.ID, fb.FileID, fb.VersionID, fb.Text, x, y, ts, page, fb.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build feedback insert: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "feedback", fb.ID)
	}
	return nil
}
