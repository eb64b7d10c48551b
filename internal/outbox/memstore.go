package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// MemoryStore keeps items in process memory. Items do not survive restarts.
type MemoryStore struct {
	mu    sync.Mutex
	items []*domain.OutboxItem
	byID  map[uuid.UUID]*domain.OutboxItem
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[uuid.UUID]*domain.OutboxItem),
		now:  time.Now,
	}
}

func (s *MemoryStore) Add(_ context.Context, item domain.OutboxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[item.ID]; ok {
		return domain.ErrAlreadyExists
	}
	it := item
	s.items = append(s.items, &it)
	s.byID[it.ID] = &it
	return nil
}

func (s *MemoryStore) Claim(_ context.Context, limit int) ([]domain.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutboxItem
	for _, it := range s.items {
		if len(out) >= limit {
			break
		}
		if it.Status != domain.OutboxStatusPending {
			continue
		}
		it.Status = domain.OutboxStatusProcessing
		it.UpdatedAt = s.now().UTC()
		out = append(out, *it)
	}
	return out, nil
}

func (s *MemoryStore) Finish(_ context.Context, id uuid.UUID, status domain.OutboxStatus, attempts int, lastErr *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	it.Status = status
	it.Attempts = attempts
	it.LastError = lastErr
	it.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (domain.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st domain.OutboxStats
	for _, it := range s.items {
		switch it.Status {
		case domain.OutboxStatusPending:
			st.Pending++
		case domain.OutboxStatusProcessing:
			st.Processing++
		case domain.OutboxStatusDone:
			st.Done++
		case domain.OutboxStatusFailed:
			st.Failed++
		}
	}
	st.Total = len(s.items)
	return st, nil
}

func (s *MemoryStore) List(_ context.Context, status domain.OutboxStatus, limit int) ([]domain.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutboxItem
	for _, it := range s.items {
		if limit > 0 && len(out) >= limit {
			break
		}
		if it.Status == status {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *MemoryStore) RetryFailed(_ context.Context) (int, error) {
	return s.move(domain.OutboxStatusFailed, true), nil
}

func (s *MemoryStore) ResetProcessing(_ context.Context) (int, error) {
	return s.move(domain.OutboxStatusProcessing, false), nil
}

func (s *MemoryStore) move(from domain.OutboxStatus, resetAttempts bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		if it.Status != from {
			continue
		}
		it.Status = domain.OutboxStatusPending
		if resetAttempts {
			it.Attempts = 0
		}
		it.UpdatedAt = s.now().UTC()
		n++
	}
	return n
}

func (s *MemoryStore) InFlight(_ context.Context) ([]domain.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.OutboxItem
	for _, it := range s.items {
		if it.Status == domain.OutboxStatusPending || it.Status == domain.OutboxStatusProcessing {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	n := 0
	for _, it := range s.items {
		terminal := it.Status == domain.OutboxStatusDone || it.Status == domain.OutboxStatusFailed
		if terminal && it.UpdatedAt.Before(cutoff) {
			delete(s.byID, it.ID)
			n++
			continue
		}
		kept = append(kept, it)
	}
	clear(s.items[len(kept):])
	s.items = kept
	return n, nil
}
