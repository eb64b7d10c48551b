package review

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Filter narrows the file list shown to the reviewer.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterPending      Filter = "pending"
	FilterApproved     Filter = "approved"
	FilterNeedsChanges Filter = "needs_changes"
)

func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterPending, FilterApproved, FilterNeedsChanges:
		return true
	}
	return false
}

// Matches reports whether a file with status passes the filter.
func (f Filter) Matches(status domain.FileStatus) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return string(f) == string(status)
}

// Repository is the local, optimistic copy of a project's files. It is the
// only place file status and feedback change during a session. Not safe for
// concurrent use.
type Repository struct {
	order []uuid.UUID
	files map[uuid.UUID]*domain.FileBundle
}

// NewRepository copies bundles into a new Repository, keeping their order.
func NewRepository(bundles []domain.FileBundle) *Repository {
	r := &Repository{
		order: make([]uuid.UUID, 0, len(bundles)),
		files: make(map[uuid.UUID]*domain.FileBundle, len(bundles)),
	}
	for _, b := range bundles {
		if _, dup := r.files[b.File.ID]; dup {
			continue
		}
		c := b.Clone()
		r.order = append(r.order, c.File.ID)
		r.files[c.File.ID] = &c
	}
	return r
}

// Len returns the number of files.
func (r *Repository) Len() int { return len(r.order) }

// Get returns a copy of the file's bundle.
func (r *Repository) Get(id uuid.UUID) (domain.FileBundle, error) {
	b, ok := r.files[id]
	if !ok {
		return domain.FileBundle{}, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return b.Clone(), nil
}

// ApplyApproval sets the file to approved and returns its previous status.
func (r *Repository) ApplyApproval(id uuid.UUID) (domain.FileStatus, error) {
	b, ok := r.files[id]
	if !ok {
		return "", fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	prev := b.File.Status
	b.File.Status = domain.FileStatusApproved
	return prev, nil
}

// ApplyFeedback prepends fb to the file's feedback and marks the file as
// needing changes.
func (r *Repository) ApplyFeedback(fb domain.Feedback) error {
	b, ok := r.files[fb.FileID]
	if !ok {
		return fmt.Errorf("file %s: %w", fb.FileID, domain.ErrNotFound)
	}
	if fb.VersionID != nil && b.FindVersion(*fb.VersionID) == nil {
		return domain.NewValidationError("version_id", "not a version of this file")
	}

	c := fb
	if fb.Locator != nil {
		loc := fb.Locator.Clone()
		c.Locator = &loc
	}
	b.Feedback = append([]domain.Feedback{c}, b.Feedback...)
	b.File.Status = domain.FileStatusNeedsChanges
	return nil
}

// ApplyVersionReplaced makes v the file's current version and resets the
// file to pending.
func (r *Repository) ApplyVersionReplaced(v domain.Version) error {
	b, ok := r.files[v.FileID]
	if !ok {
		return fmt.Errorf("file %s: %w", v.FileID, domain.ErrNotFound)
	}
	if b.FindVersion(v.ID) == nil {
		b.Versions = append([]domain.Version{v}, b.Versions...)
	}
	cur := *b.FindVersion(v.ID)
	b.CurrentVersion = &cur
	id := v.ID
	b.File.CurrentVersionID = &id
	b.File.Status = domain.FileStatusPending
	return nil
}

// AllApproved reports whether the project has files and all are approved.
func (r *Repository) AllApproved() bool {
	if len(r.order) == 0 {
		return false
	}
	for _, id := range r.order {
		if r.files[id].File.Status != domain.FileStatusApproved {
			return false
		}
	}
	return true
}

// Counts returns the number of files per status.
func (r *Repository) Counts() map[domain.FileStatus]int {
	out := make(map[domain.FileStatus]int, 3)
	for _, id := range r.order {
		out[r.files[id].File.Status]++
	}
	return out
}

// View returns copies of the files passing filter, in view order.
func (r *Repository) View(filter Filter) []domain.FileBundle {
	var out []domain.FileBundle
	for _, id := range r.order {
		b := r.files[id]
		if filter.Matches(b.File.Status) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// Snapshot returns copies of every file in view order.
func (r *Repository) Snapshot() []domain.FileBundle {
	return r.View(FilterAll)
}

// NextAfter picks the file to show after current. It prefers the next
// pending file in the filtered view, searching forward and wrapping around;
// failing that, the next file in view order.
func (r *Repository) NextAfter(current uuid.UUID, filter Filter) (uuid.UUID, bool) {
	pos := r.position(current)
	if pos < 0 {
		return uuid.Nil, false
	}
	n := len(r.order)

	for step := 1; step < n; step++ {
		b := r.files[r.order[(pos+step)%n]]
		if b.File.Status == domain.FileStatusPending && filter.Matches(b.File.Status) {
			return b.File.ID, true
		}
	}
	for i := pos + 1; i < n; i++ {
		b := r.files[r.order[i]]
		if filter.Matches(b.File.Status) {
			return b.File.ID, true
		}
	}
	return uuid.Nil, false
}

// Neighbor returns the file delta positions away from current within the
// filtered view. If current is not in the view, the search starts from its
// position in the full order.
func (r *Repository) Neighbor(current uuid.UUID, filter Filter, delta int) (uuid.UUID, bool) {
	pos := r.position(current)
	if pos < 0 || delta == 0 {
		return uuid.Nil, false
	}
	step := 1
	if delta < 0 {
		step = -1
		delta = -delta
	}
	for i := pos + step; i >= 0 && i < len(r.order); i += step {
		b := r.files[r.order[i]]
		if !filter.Matches(b.File.Status) {
			continue
		}
		delta--
		if delta == 0 {
			return b.File.ID, true
		}
	}
	return uuid.Nil, false
}

func (r *Repository) position(id uuid.UUID) int {
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}
