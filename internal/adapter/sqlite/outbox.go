package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/outbox"
)

var _ outbox.Store = (*OutboxStore)(nil)

const outboxColumns = `id, kind, file_id, payload, status, attempts, last_error, created_at, updated_at`

// OutboxStore persists outbox items in SQLite so pending writes survive
// restarts.
type OutboxStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxStore creates an OutboxStore on an opened database.
func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db, now: time.Now}
}

func (s *OutboxStore) Add(ctx context.Context, item domain.OutboxItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (`+outboxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID.String(), string(item.Kind), item.FileID.String(), []byte(item.Payload),
		string(item.Status), item.Attempts, item.LastError,
		item.CreatedAt.UnixNano(), item.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("outbox item %s: %w", item.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add outbox item: %w", err)
	}
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, limit int) ([]domain.OutboxItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE status = ?
		ORDER BY seq
		LIMIT ?`,
		string(domain.OutboxStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range items {
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?`,
			string(domain.OutboxStatusProcessing), now.UnixNano(), items[i].ID.String(),
		); err != nil {
			return nil, fmt.Errorf("failed to claim item %s: %w", items[i].ID, err)
		}
		items[i].Status = domain.OutboxStatusProcessing
		items[i].UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return items, nil
}

func (s *OutboxStore) Finish(ctx context.Context, id uuid.UUID, status domain.OutboxStatus, attempts int, lastErr *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(status), attempts, lastErr, s.now().UTC().UnixNano(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish outbox item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish outbox item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *OutboxStore) Stats(ctx context.Context) (domain.OutboxStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("failed to count outbox items: %w", err)
	}
	defer rows.Close()

	var st domain.OutboxStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.OutboxStats{}, fmt.Errorf("failed to scan outbox stats: %w", err)
		}
		switch domain.OutboxStatus(status) {
		case domain.OutboxStatusPending:
			st.Pending = n
		case domain.OutboxStatusProcessing:
			st.Processing = n
		case domain.OutboxStatusDone:
			st.Done = n
		case domain.OutboxStatusFailed:
			st.Failed = n
		}
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("failed to iterate outbox stats: %w", err)
	}
	return st, nil
}

func (s *OutboxStore) List(ctx context.Context, status domain.OutboxStatus, limit int) ([]domain.OutboxItem, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE status = ?
		ORDER BY seq
		LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox items: %w", err)
	}
	return scanItems(rows)
}

func (s *OutboxStore) RetryFailed(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = 0, updated_at = ?
		WHERE status = ?`,
		string(domain.OutboxStatusPending), s.now().UTC().UnixNano(), string(domain.OutboxStatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to retry outbox items: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *OutboxStore) ResetProcessing(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, updated_at = ?
		WHERE status = ?`,
		string(domain.OutboxStatusPending), s.now().UTC().UnixNano(), string(domain.OutboxStatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset processing items: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *OutboxStore) InFlight(ctx context.Context) ([]domain.OutboxItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM outbox
		WHERE status IN (?, ?)
		ORDER BY seq`,
		string(domain.OutboxStatusPending), string(domain.OutboxStatusProcessing),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight items: %w", err)
	}
	return scanItems(rows)
}

// Prune deletes done and failed items last updated before cutoff.
func (s *OutboxStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status IN (?, ?) AND updated_at < ?`,
		string(domain.OutboxStatusDone), string(domain.OutboxStatusFailed), cutoff.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune outbox: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanItems(rows *sql.Rows) ([]domain.OutboxItem, error) {
	defer rows.Close()

	var out []domain.OutboxItem
	for rows.Next() {
		var (
			id, kind, fileID, status string
			payload                  []byte
			lastErr                  sql.NullString
			created, updated         int64
			item                     domain.OutboxItem
		)
		if err := rows.Scan(&id, &kind, &fileID, &payload, &status, &item.Attempts, &lastErr, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}

		var err error
		if item.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad outbox id %q: %w", id, err)
		}
		if item.FileID, err = uuid.Parse(fileID); err != nil {
			return nil, fmt.Errorf("bad outbox file id %q: %w", fileID, err)
		}
		item.Kind = domain.OutboxKind(kind)
		item.Status = domain.OutboxStatus(status)
		item.Payload = payload
		if lastErr.Valid {
			msg := lastErr.String
			item.LastError = &msg
		}
		item.CreatedAt = time.Unix(0, created).UTC()
		item.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return out, nil
}
