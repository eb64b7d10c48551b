package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newItem(t *testing.T, fileID uuid.UUID, status domain.FileStatus) domain.OutboxItem {
	t.Helper()
	payload, err := json.Marshal(domain.StatusUpdate{FileID: fileID, Status: status})
	require.NoError(t, err)
	now := time.Now().UTC()
	return domain.OutboxItem{
		ID:        uuid.New(),
		Kind:      domain.OutboxUpdateStatus,
		FileID:    fileID,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOpen_FileDatabaseIsMigratedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.db")

	db, err := Open(ctx, path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path, slog.Default())
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='outbox'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOutboxStore_AddAndClaimInOrder(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	fileID := uuid.New()
	first := newItem(t, fileID, domain.FileStatusNeedsChanges)
	second := newItem(t, fileID, domain.FileStatusApproved)
	third := newItem(t, uuid.New(), domain.FileStatusApproved)
	require.NoError(t, s.Add(ctx, first))
	require.NoError(t, s.Add(ctx, second))
	require.NoError(t, s.Add(ctx, third))

	claimed, err := s.Claim(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, second.ID, claimed[1].ID)
	assert.Equal(t, domain.OutboxStatusProcessing, claimed[0].Status)
	assert.JSONEq(t, string(first.Payload), string(claimed[0].Payload))

	rest, err := s.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, third.ID, rest[0].ID)

	none, err := s.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutboxStore_AddDuplicate(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	item := newItem(t, uuid.New(), domain.FileStatusApproved)
	require.NoError(t, s.Add(ctx, item))
	assert.ErrorIs(t, s.Add(ctx, item), domain.ErrAlreadyExists)
}

func TestOutboxStore_FinishAndStats(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	a := newItem(t, uuid.New(), domain.FileStatusApproved)
	b := newItem(t, uuid.New(), domain.FileStatusApproved)
	c := newItem(t, uuid.New(), domain.FileStatusApproved)
	for _, it := range []domain.OutboxItem{a, b, c} {
		require.NoError(t, s.Add(ctx, it))
	}
	_, err := s.Claim(ctx, 2)
	require.NoError(t, err)

	msg := "boom"
	require.NoError(t, s.Finish(ctx, a.ID, domain.OutboxStatusDone, 1, nil))
	require.NoError(t, s.Finish(ctx, b.ID, domain.OutboxStatusFailed, 5, &msg))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxStats{Pending: 1, Done: 1, Failed: 1, Total: 3}, st)

	failed, err := s.List(ctx, domain.OutboxStatusFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 5, failed[0].Attempts)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "boom", *failed[0].LastError)

	err = s.Finish(ctx, uuid.New(), domain.OutboxStatusDone, 1, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutboxStore_RetryFailedAndResetProcessing(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	a := newItem(t, uuid.New(), domain.FileStatusApproved)
	b := newItem(t, uuid.New(), domain.FileStatusApproved)
	require.NoError(t, s.Add(ctx, a))
	require.NoError(t, s.Add(ctx, b))
	_, err := s.Claim(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, s.Finish(ctx, a.ID, domain.OutboxStatusFailed, 5, nil))

	n, err := s.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := s.List(ctx, domain.OutboxStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, 0, pending[0].Attempts)
}

func TestOutboxStore_InFlight(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	f1, f2, f3 := uuid.New(), uuid.New(), uuid.New()
	a := newItem(t, f1, domain.FileStatusApproved)
	b := newItem(t, f1, domain.FileStatusApproved)
	c := newItem(t, f2, domain.FileStatusApproved)
	d := newItem(t, f3, domain.FileStatusApproved)
	for _, it := range []domain.OutboxItem{a, b, c, d} {
		require.NoError(t, s.Add(ctx, it))
	}
	require.NoError(t, s.Finish(ctx, d.ID, domain.OutboxStatusDone, 1, nil))

	_, err := s.Claim(ctx, 1)
	require.NoError(t, err)

	items, err := s.InFlight(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, domain.OutboxStatusProcessing, items[0].Status)
	assert.Equal(t, f2, items[2].FileID)
}

func TestOutboxStore_Prune(t *testing.T) {
	t.Parallel()
	s := NewOutboxStore(setupDB(t))
	ctx := context.Background()

	a := newItem(t, uuid.New(), domain.FileStatusApproved)
	b := newItem(t, uuid.New(), domain.FileStatusApproved)
	c := newItem(t, uuid.New(), domain.FileStatusApproved)
	require.NoError(t, s.Add(ctx, a))
	require.NoError(t, s.Add(ctx, b))
	require.NoError(t, s.Add(ctx, c))
	require.NoError(t, s.Finish(ctx, a.ID, domain.OutboxStatusDone, 1, nil))
	msg := "gave up"
	require.NoError(t, s.Finish(ctx, c.ID, domain.OutboxStatusFailed, 5, &msg))

	n, err := s.Prune(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
}
