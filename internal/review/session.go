// Package review runs one client's review of a shared project: the local
// file state, the open file's viewer and the approve / feedback actions.
//
// Actions apply to local state immediately. Their writes and owner
// notifications are handed to a Persister and never awaited.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/blobcache"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/viewer"
)

// ErrSessionClosed is returned by every action on a closed session.
var ErrSessionClosed = fmt.Errorf("review session closed: %w", domain.ErrNotFound)

// BlobCache is the part of the blob cache a session uses.
type BlobCache interface {
	Materialize(ctx context.Context, url string) string
	Acquire(url string) (*blobcache.Lease, bool)
	Open(handle string) (blobcache.Blob, bool)
	PreloadAll(urls []string)
}

// Persister accepts background writes. Calls must not block on the data store.
type Persister interface {
	EnqueueStatus(ctx context.Context, fileID uuid.UUID, status domain.FileStatus) error
	EnqueueFeedback(ctx context.Context, fb domain.Feedback) error
	EnqueueNotification(ctx context.Context, n domain.Notification) error
}

// ToastKind identifies a confirmation message.
type ToastKind string

const (
	ToastApproved ToastKind = "approved"
	ToastFeedback ToastKind = "feedback"
)

// Toast is a transient confirmation shown after an action was accepted.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
	FileID  uuid.UUID `json:"file_id"`
	At      time.Time `json:"at"`
}

// ApproveResult describes the outcome of Approve.
type ApproveResult struct {
	Previous    domain.FileStatus
	Changed     bool
	AllApproved bool
	// Next is the file the session will open after the advance delay.
	Next *uuid.UUID
}

// Content is the displayable body of a file version. When the cache could
// not materialize it, only RedirectURL is set.
type Content struct {
	Blob        blobcache.Blob
	Handle      string
	RedirectURL string
}

type scheduleFunc func(d time.Duration, f func()) func() bool

// Session is safe for concurrent use.
type Session struct {
	id      string
	project domain.Project

	mu       sync.Mutex
	repo     *Repository
	viewer   *viewer.Viewer
	filter   Filter
	lease    *blobcache.Lease
	leaseURL string
	toasts   []Toast
	closed   bool

	// allApproved remembers the last observed state so all_approved fires
	// once per transition.
	allApproved   bool
	cancelAdvance func() bool

	cache    BlobCache
	persist  Persister
	log      *slog.Logger
	delay    time.Duration
	schedule scheduleFunc
	now      func() time.Time
	lastSeen time.Time
}

// NewSession creates a session over bundles and starts warming the cache
// with every file's current version.
func NewSession(
	log *slog.Logger,
	cfg config.ReviewConfig,
	id string,
	project domain.Project,
	bundles []domain.FileBundle,
	cache BlobCache,
	persist Persister,
) *Session {
	s := &Session{
		id:      id,
		project: project,
		repo:    NewRepository(bundles),
		viewer:  viewer.New(cfg),
		filter:  FilterAll,
		cache:   cache,
		persist: persist,
		log:     log.With("service", "review", "session_id", id, "project_id", project.ID.String()),
		delay:   cfg.AdvanceDelay,
		schedule: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		now: time.Now,
	}
	s.allApproved = s.repo.AllApproved()
	s.lastSeen = s.now()

	urls := make([]string, 0, len(bundles))
	for _, b := range s.repo.Snapshot() {
		urls = append(urls, b.SourceURL())
	}
	cache.PreloadAll(urls)

	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Project returns the reviewed project.
func (s *Session) Project() domain.Project { return s.project }

// LastSeen returns when the session last handled a call.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// begin locks the session for an action.
func (s *Session) begin() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastSeen = s.now()
	return nil
}

// ---------------------------------------------------------------------------
// File list and navigation
// ---------------------------------------------------------------------------

// Files returns the files passing the current filter.
func (s *Session) Files() ([]domain.FileBundle, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.repo.View(s.filter), nil
}

// Counts returns the number of files per status.
func (s *Session) Counts() (map[domain.FileStatus]int, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.repo.Counts(), nil
}

// SetFilter changes the file list filter.
func (s *Session) SetFilter(f Filter) error {
	if !f.IsValid() {
		return domain.NewValidationError("filter", fmt.Sprintf("unknown filter %q", f))
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.filter = f
	return nil
}

// Filter returns the current filter.
func (s *Session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Snapshot returns every file's local state in view order.
func (s *Session) Snapshot() []domain.FileBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Snapshot()
}

// OpenFile shows fileID in the viewer. A pending auto-advance is cancelled.
func (s *Session) OpenFile(fileID uuid.UUID) (domain.FileBundle, error) {
	if err := s.begin(); err != nil {
		return domain.FileBundle{}, err
	}
	defer s.mu.Unlock()
	return s.openLocked(fileID)
}

// OpenFileID returns the file shown in the viewer.
func (s *Session) OpenFileID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.viewer.IsOpen() {
		return uuid.Nil, false
	}
	return s.viewer.FileID(), true
}

// Next opens the following file in the filtered view.
func (s *Session) Next() (uuid.UUID, error) { return s.step(1) }

// Prev opens the preceding file in the filtered view.
func (s *Session) Prev() (uuid.UUID, error) { return s.step(-1) }

func (s *Session) step(delta int) (uuid.UUID, error) {
	if err := s.begin(); err != nil {
		return uuid.Nil, err
	}
	defer s.mu.Unlock()

	var target uuid.UUID
	if s.viewer.IsOpen() {
		id, ok := s.repo.Neighbor(s.viewer.FileID(), s.filter, delta)
		if !ok {
			return uuid.Nil, fmt.Errorf("no file in that direction: %w", domain.ErrNotFound)
		}
		target = id
	} else {
		view := s.repo.View(s.filter)
		if len(view) == 0 {
			return uuid.Nil, fmt.Errorf("no files in view: %w", domain.ErrNotFound)
		}
		target = view[0].File.ID
	}

	if _, err := s.openLocked(target); err != nil {
		return uuid.Nil, err
	}
	return target, nil
}

func (s *Session) openLocked(fileID uuid.UUID) (domain.FileBundle, error) {
	b, err := s.repo.Get(fileID)
	if err != nil {
		return domain.FileBundle{}, err
	}
	s.stopAdvanceLocked()
	s.viewer.Open(b)
	s.syncLeaseLocked()

	s.log.Debug("file opened", slog.String("file_id", fileID.String()))
	return b, nil
}

// CloseFile closes the viewer.
func (s *Session) CloseFile() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.stopAdvanceLocked()
	s.viewer.Close()
	s.syncLeaseLocked()
	return nil
}

// ---------------------------------------------------------------------------
// Viewer
// ---------------------------------------------------------------------------

// ViewerState returns the open file's render state.
func (s *Session) ViewerState() viewer.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer.State()
}

// ApplyViewerEvent feeds ev to the viewer and returns the resulting state.
func (s *Session) ApplyViewerEvent(ev viewer.Event) (viewer.State, error) {
	if err := s.begin(); err != nil {
		return viewer.State{}, err
	}
	defer s.mu.Unlock()

	if err := s.viewer.Apply(ev); err != nil {
		return s.viewer.State(), err
	}
	if ev.Type == viewer.EventSwitchVersion {
		s.syncLeaseLocked()
	}
	return s.viewer.State(), nil
}

// syncLeaseLocked keeps exactly one lease, on the version the viewer shows.
// Uncached content is preloaded; Content leases it once it arrives.
func (s *Session) syncLeaseLocked() {
	url := ""
	if v := s.viewer.SelectedVersion(); v != nil {
		url = v.URL
	}
	if url == s.leaseURL && (s.lease != nil || url == "") {
		return
	}

	if s.lease != nil {
		s.lease.Release()
		s.lease = nil
	}
	s.leaseURL = url
	if url == "" {
		return
	}
	if l, ok := s.cache.Acquire(url); ok {
		s.lease = l
		return
	}
	s.cache.PreloadAll([]string{url})
}

// Content returns the body of fileID's displayed version: the viewer's
// selected version when the file is open, its current version otherwise.
func (s *Session) Content(ctx context.Context, fileID uuid.UUID) (Content, error) {
	if err := s.begin(); err != nil {
		return Content{}, err
	}
	b, err := s.repo.Get(fileID)
	if err != nil {
		s.mu.Unlock()
		return Content{}, err
	}
	url := b.SourceURL()
	if s.viewer.IsOpen() && s.viewer.FileID() == fileID {
		if v := s.viewer.SelectedVersion(); v != nil {
			url = v.URL
		}
	}
	s.mu.Unlock()

	if url == "" {
		return Content{}, fmt.Errorf("file %s has no content: %w", fileID, domain.ErrNotFound)
	}

	handle := s.cache.Materialize(ctx, url)
	if !strings.HasPrefix(handle, blobcache.HandlePrefix) {
		return Content{RedirectURL: url}, nil
	}

	s.mu.Lock()
	if !s.closed && url == s.leaseURL {
		s.syncLeaseLocked()
		if s.lease != nil {
			handle = s.lease.Handle()
		}
	}
	s.mu.Unlock()

	blob, ok := s.cache.Open(handle)
	if !ok {
		// Evicted between materialize and open.
		return Content{RedirectURL: url}, nil
	}
	return Content{Blob: blob, Handle: handle}, nil
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// Approve marks fileID approved. Approving an approved file changes nothing.
// When fileID is open, the next file is opened after the advance delay.
func (s *Session) Approve(ctx context.Context, fileID uuid.UUID) (ApproveResult, error) {
	if err := s.begin(); err != nil {
		return ApproveResult{}, err
	}
	defer s.mu.Unlock()

	b, err := s.repo.Get(fileID)
	if err != nil {
		return ApproveResult{}, err
	}
	if b.File.Status == domain.FileStatusApproved {
		return ApproveResult{Previous: domain.FileStatusApproved}, nil
	}

	prev, err := s.repo.ApplyApproval(fileID)
	if err != nil {
		return ApproveResult{}, err
	}
	s.refreshViewerLocked(fileID)
	s.toastLocked(ToastApproved, fmt.Sprintf("%s approved", b.File.Name), fileID)

	ctx = context.WithoutCancel(ctx)
	s.handOff(ctx, "status", fileID, s.persist.EnqueueStatus(ctx, fileID, domain.FileStatusApproved))
	s.notifyLocked(ctx, domain.NotificationApproved, b.File)

	res := ApproveResult{Previous: prev, Changed: true}
	all := s.repo.AllApproved()
	if all && !s.allApproved {
		s.notifyLocked(ctx, domain.NotificationAllApproved, b.File)
		res.AllApproved = true
	}
	s.allApproved = all

	if s.viewer.IsOpen() && s.viewer.FileID() == fileID {
		if next, ok := s.repo.NextAfter(fileID, s.filter); ok {
			res.Next = &next
			s.scheduleAdvanceLocked(fileID, next)
		}
	}

	s.log.InfoContext(ctx, "file approved",
		slog.String("file_id", fileID.String()),
		slog.String("previous", string(prev)),
		slog.Bool("all_approved", res.AllApproved),
	)
	return res, nil
}

// SubmitFeedbackInput is the input of SubmitFeedback.
type SubmitFeedbackInput struct {
	FileID uuid.UUID
	Text   string
}

// MaxFeedbackLength bounds a single comment, in bytes after trimming.
const MaxFeedbackLength = 5000

func (i SubmitFeedbackInput) Validate() error {
	var errs []domain.FieldError
	if i.FileID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "file_id", Message: "required"})
	}
	if len(strings.TrimSpace(i.Text)) > MaxFeedbackLength {
		errs = append(errs, domain.FieldError{Field: "text", Message: fmt.Sprintf("max %d characters", MaxFeedbackLength)})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// SubmitFeedback records a comment on fileID and marks it as needing
// changes. Blank text is ignored and returns (nil, nil). When the file is
// open, the comment refers to the displayed version and takes the pending
// markup, which is then cleared.
func (s *Session) SubmitFeedback(ctx context.Context, in SubmitFeedbackInput) (*domain.Feedback, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	b, err := s.repo.Get(in.FileID)
	if err != nil {
		return nil, err
	}

	fb := domain.Feedback{
		ID:        uuid.New(),
		FileID:    in.FileID,
		VersionID: b.File.CurrentVersionID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	isOpen := s.viewer.IsOpen() && s.viewer.FileID() == in.FileID
	if isOpen {
		if v := s.viewer.SelectedVersion(); v != nil {
			id := v.ID
			fb.VersionID = &id
		}
		fb.Locator = s.viewer.PendingMarkup()
	}

	if err := s.repo.ApplyFeedback(fb); err != nil {
		return nil, err
	}
	s.refreshViewerLocked(in.FileID)
	if isOpen {
		s.viewer.ClearMarkup()
	}
	s.allApproved = s.repo.AllApproved()
	s.toastLocked(ToastFeedback, "Feedback sent", in.FileID)

	ctx = context.WithoutCancel(ctx)
	s.handOff(ctx, "feedback", in.FileID, s.persist.EnqueueFeedback(ctx, fb))
	s.handOff(ctx, "status", in.FileID, s.persist.EnqueueStatus(ctx, in.FileID, domain.FileStatusNeedsChanges))
	s.notifyLocked(ctx, domain.NotificationFeedback, b.File)

	s.log.InfoContext(ctx, "feedback submitted",
		slog.String("file_id", in.FileID.String()),
		slog.String("feedback_id", fb.ID.String()),
		slog.Bool("has_markup", fb.Locator != nil),
	)
	return &fb, nil
}

// Toasts returns and clears pending confirmations.
func (s *Session) Toasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.toasts
	s.toasts = nil
	return out
}

// Sync adopts version replacements made in the store since the session
// started; a replaced file goes back to pending. It returns the number of
// files that changed.
func (s *Session) Sync(remote []domain.FileBundle) (int, error) {
	if err := s.begin(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	changed := 0
	for _, rb := range remote {
		if rb.CurrentVersion == nil {
			continue
		}
		local, err := s.repo.Get(rb.File.ID)
		if err != nil {
			continue
		}
		if local.File.CurrentVersionID != nil && *local.File.CurrentVersionID == rb.CurrentVersion.ID {
			continue
		}
		if err := s.repo.ApplyVersionReplaced(*rb.CurrentVersion); err != nil {
			return changed, err
		}
		changed++

		if s.viewer.IsOpen() && s.viewer.FileID() == rb.File.ID {
			nb, _ := s.repo.Get(rb.File.ID)
			s.viewer.Open(nb)
			s.syncLeaseLocked()
		}
		s.log.Info("version replaced",
			slog.String("file_id", rb.File.ID.String()),
			slog.String("version_id", rb.CurrentVersion.ID.String()),
		)
	}
	if changed > 0 {
		s.allApproved = s.repo.AllApproved()
	}
	return changed, nil
}

// Close stops timers and releases the cache lease. Later calls fail with
// ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopAdvanceLocked()
	s.viewer.Close()
	if s.lease != nil {
		s.lease.Release()
		s.lease = nil
	}
	s.leaseURL = ""
}

// ---------------------------------------------------------------------------
// Helpers (caller holds s.mu)
// ---------------------------------------------------------------------------

func (s *Session) refreshViewerLocked(fileID uuid.UUID) {
	if !s.viewer.IsOpen() || s.viewer.FileID() != fileID {
		return
	}
	if b, err := s.repo.Get(fileID); err == nil {
		s.viewer.Refresh(b)
	}
}

func (s *Session) toastLocked(kind ToastKind, msg string, fileID uuid.UUID) {
	s.toasts = append(s.toasts, Toast{Kind: kind, Message: msg, FileID: fileID, At: s.now()})
}

func (s *Session) notifyLocked(ctx context.Context, kind domain.NotificationKind, f domain.File) {
	n := domain.Notification{
		Kind:      kind,
		ProjectID: s.project.ID,
		FileID:    f.ID,
		FileName:  f.Name,
	}
	s.handOff(ctx, "notify", f.ID, s.persist.EnqueueNotification(ctx, n))
}

// handOff logs a failed enqueue. The local change stands either way.
func (s *Session) handOff(ctx context.Context, what string, fileID uuid.UUID, err error) {
	if err == nil {
		return
	}
	s.log.ErrorContext(ctx, "enqueue background write",
		slog.String("write", what),
		slog.String("file_id", fileID.String()),
		slog.String("error", err.Error()),
	)
}

func (s *Session) scheduleAdvanceLocked(from, to uuid.UUID) {
	s.stopAdvanceLocked()
	s.cancelAdvance = s.schedule(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || !s.viewer.IsOpen() || s.viewer.FileID() != from {
			return
		}
		s.cancelAdvance = nil
		if _, err := s.openLocked(to); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("auto-advance failed", slog.String("file_id", to.String()), slog.String("error", err.Error()))
		}
	})
}

func (s *Session) stopAdvanceLocked() {
	if s.cancelAdvance != nil {
		s.cancelAdvance()
		s.cancelAdvance = nil
	}
}
