// Package viewer implements the per-file review viewer: zoom and fit
// handling, version selection, video playback position, PDF pages and the
// pending markup draft. A Viewer is not safe for concurrent use; its owner
// serializes events.
package viewer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/markup"
)

// Viewer holds the render state of the open file.
type Viewer struct {
	ladder       []int
	defaultIndex int
	baseFraction float64

	open   bool
	bundle domain.FileBundle

	zoomIndex  int
	fitMode    FitMode
	selected   *uuid.UUID
	pending    *domain.Locator
	markupMode bool
	hovered    *uuid.UUID

	playing  bool
	scrub    float64
	duration float64

	pageCount   int
	currentPage int
	pageSizes   map[int]Size

	container Size
	natural   Size
}

// New creates a closed Viewer using the configured zoom ladder.
func New(cfg config.ReviewConfig) *Viewer {
	ladder := cfg.ZoomLadder
	if len(ladder) == 0 {
		ladder = DefaultLadder
	}
	frac := cfg.ImageBaseFraction
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	v := &Viewer{
		ladder:       append([]int(nil), ladder...),
		defaultIndex: indexOf(ladder, 100),
		baseFraction: frac,
	}
	v.reset()
	return v
}

// reset restores every per-file field except the open bundle and the
// container measurement.
func (v *Viewer) reset() {
	v.zoomIndex = v.defaultIndex
	v.fitMode = FitNone
	v.selected = nil
	v.pending = nil
	v.markupMode = false
	v.hovered = nil
	v.playing = false
	v.scrub = 0
	v.duration = 0
	v.pageCount = 0
	v.currentPage = 1
	v.pageSizes = make(map[int]Size)
	v.natural = Size{}
}

// Open shows bundle with default state, selecting its current version.
func (v *Viewer) Open(bundle domain.FileBundle) {
	v.reset()
	v.bundle = bundle.Clone()
	v.open = true
	if bundle.File.CurrentVersionID != nil {
		id := *bundle.File.CurrentVersionID
		v.selected = &id
	}
}

// Close tears the state down.
func (v *Viewer) Close() {
	v.reset()
	v.bundle = domain.FileBundle{}
	v.open = false
}

// IsOpen reports whether a file is shown.
func (v *Viewer) IsOpen() bool { return v.open }

// FileID returns the open file id, or uuid.Nil.
func (v *Viewer) FileID() uuid.UUID {
	if !v.open {
		return uuid.Nil
	}
	return v.bundle.File.ID
}

// SelectedVersion returns the selected version, or nil.
func (v *Viewer) SelectedVersion() *domain.Version {
	if !v.open || v.selected == nil {
		return nil
	}
	return v.bundle.FindVersion(*v.selected)
}

// SwitchVersion selects another version of the open file and resets the
// view as Open does.
func (v *Viewer) SwitchVersion(id uuid.UUID) error {
	if !v.open {
		return ErrNotOpen
	}
	if v.bundle.FindVersion(id) == nil {
		return fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}
	bundle := v.bundle
	v.reset()
	v.bundle = bundle
	v.selected = &id
	return nil
}

// Refresh swaps in newer data for the open file without resetting the view.
// If the selected version disappeared, the current version is selected.
func (v *Viewer) Refresh(bundle domain.FileBundle) {
	if !v.open || bundle.File.ID != v.bundle.File.ID {
		return
	}
	v.bundle = bundle.Clone()
	if v.selected != nil && v.bundle.FindVersion(*v.selected) != nil {
		return
	}
	v.selected = nil
	if bundle.File.CurrentVersionID != nil {
		id := *bundle.File.CurrentVersionID
		v.selected = &id
	}
}

// ---------------------------------------------------------------------------
// Zoom and fit
// ---------------------------------------------------------------------------

// ZoomIn moves one ladder step up from the effective zoom and leaves any fit mode.
func (v *Viewer) ZoomIn() error {
	if !v.open {
		return ErrNotOpen
	}
	v.zoomIndex = stepUp(v.ladder, v.EffectiveZoom())
	v.fitMode = FitNone
	return nil
}

// ZoomOut moves one ladder step down from the effective zoom and leaves any fit mode.
func (v *Viewer) ZoomOut() error {
	if !v.open {
		return ErrNotOpen
	}
	v.zoomIndex = stepDown(v.ladder, v.EffectiveZoom())
	v.fitMode = FitNone
	return nil
}

// ToggleFitWidth enters fit-width, or returns to manual zoom if already in it.
func (v *Viewer) ToggleFitWidth() error {
	return v.toggleFit(FitWidth)
}

// ToggleFitHeight enters fit-height, or returns to manual zoom if already in it.
func (v *Viewer) ToggleFitHeight() error {
	return v.toggleFit(FitHeight)
}

func (v *Viewer) toggleFit(mode FitMode) error {
	if !v.open {
		return ErrNotOpen
	}
	if v.fitMode == mode {
		v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
		v.fitMode = FitNone
		return nil
	}
	v.fitMode = mode
	v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
	return nil
}

// DoubleClick toggles between manual 100% and fit-width. It is ignored in
// markup mode and reports whether the state changed.
func (v *Viewer) DoubleClick() (bool, error) {
	if !v.open {
		return false, ErrNotOpen
	}
	if v.markupMode {
		return false, nil
	}
	if v.fitMode == FitWidth {
		v.fitMode = FitNone
		v.zoomIndex = v.defaultIndex
		return true, nil
	}
	v.fitMode = FitWidth
	v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
	return true, nil
}

// Measure records the container the content is laid out in.
func (v *Viewer) Measure(container Size) {
	v.container = container
	if v.fitMode != FitNone {
		v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
	}
}

// MediaLoaded records the natural size of an image or video.
func (v *Viewer) MediaLoaded(natural Size) error {
	if !v.open {
		return ErrNotOpen
	}
	if v.bundle.File.Format == domain.FileFormatPDF {
		return ErrWrongFormat
	}
	v.natural = natural
	if v.fitMode != FitNone {
		v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
	}
	return nil
}

// EffectiveZoom is the zoom percent actually applied. In a fit mode it is
// solved from measurements; without them it falls back to the ladder step.
func (v *Viewer) EffectiveZoom() float64 {
	manual := float64(v.ladder[v.zoomIndex])
	if v.fitMode == FitNone {
		return manual
	}
	if z, ok := v.fitZoom(v.fitMode); ok {
		return z
	}
	return manual
}

// contentBase is the unzoomed content size at 100%.
func (v *Viewer) contentBase() (Size, bool) {
	if v.bundle.File.Format == domain.FileFormatPDF {
		page := v.largestPage()
		return page, page.valid()
	}
	if !v.container.valid() || !v.natural.valid() {
		return Size{}, false
	}
	w := v.container.W * v.baseFraction
	return Size{W: w, H: w * v.natural.H / v.natural.W}, true
}

func (v *Viewer) fitZoom(mode FitMode) (float64, bool) {
	if !v.container.valid() {
		return 0, false
	}
	base, ok := v.contentBase()
	if !ok {
		return 0, false
	}
	switch mode {
	case FitWidth:
		return 100 * v.container.W / base.W, true
	case FitHeight:
		return 100 * v.container.H / base.H, true
	}
	return 0, false
}

// ContentWidth is the rendered width of the content (of the widest page for PDF).
func (v *Viewer) ContentWidth() float64 {
	base, ok := v.contentBase()
	if !ok {
		if v.bundle.File.Format != domain.FileFormatPDF && v.container.valid() {
			return v.container.W * v.baseFraction * v.EffectiveZoom() / 100
		}
		return 0
	}
	return base.W * v.EffectiveZoom() / 100
}

// ---------------------------------------------------------------------------
// Markup
// ---------------------------------------------------------------------------

// SetMarkupMode enters or leaves markup mode.
func (v *Viewer) SetMarkupMode(on bool) error {
	if !v.open {
		return ErrNotOpen
	}
	v.markupMode = on
	return nil
}

// Click places the pending markup draft. box is the unscaled content box
// (the clicked page's box for PDF) and page is 1-based, ignored for other
// formats. A playing video is paused first.
func (v *Viewer) Click(click markup.Point, box markup.Box, page int) (domain.Locator, error) {
	if !v.open {
		return domain.Locator{}, ErrNotOpen
	}
	if !v.markupMode {
		return domain.Locator{}, ErrNotMarkupMode
	}

	var loc domain.Locator
	switch v.bundle.File.Format {
	case domain.FileFormatVideo:
		loc = markup.VideoLocator(click, box, v)
	case domain.FileFormatPDF:
		if v.pageCount > 0 && page > v.pageCount {
			return domain.Locator{}, fmt.Errorf("page %d of %d: %w", page, v.pageCount, domain.ErrValidation)
		}
		var err error
		loc, err = markup.PDFLocator(click, box, page)
		if err != nil {
			return domain.Locator{}, err
		}
	default:
		loc = markup.ImageLocator(click, box)
	}

	v.pending = &loc
	return loc.Clone(), nil
}

// PendingMarkup returns a copy of the draft, or nil.
func (v *Viewer) PendingMarkup() *domain.Locator {
	if v.pending == nil {
		return nil
	}
	loc := v.pending.Clone()
	return &loc
}

// ClearMarkup drops the draft without persisting it.
func (v *Viewer) ClearMarkup() {
	v.pending = nil
}

// ---------------------------------------------------------------------------
// Video
// ---------------------------------------------------------------------------

// Playing implements markup.Player.
func (v *Viewer) Playing() bool { return v.playing }

// CurrentTime implements markup.Player.
func (v *Viewer) CurrentTime() float64 { return v.scrub }

// Pause implements markup.Player.
func (v *Viewer) Pause() { v.playing = false }

// Play starts playback of the open video.
func (v *Viewer) Play() error {
	if err := v.requireFormat(domain.FileFormatVideo); err != nil {
		return err
	}
	v.playing = true
	return nil
}

// Seek moves the playback position, clamped to the known duration.
func (v *Viewer) Seek(t float64) error {
	if err := v.requireFormat(domain.FileFormatVideo); err != nil {
		return err
	}
	if t < 0 {
		t = 0
	}
	if v.duration > 0 && t > v.duration {
		t = v.duration
	}
	v.scrub = t
	return nil
}

// SetDuration records the media duration once metadata is loaded.
func (v *Viewer) SetDuration(d float64) error {
	if err := v.requireFormat(domain.FileFormatVideo); err != nil {
		return err
	}
	if d < 0 {
		d = 0
	}
	v.duration = d
	if d > 0 && v.scrub > d {
		v.scrub = d
	}
	return nil
}

// ---------------------------------------------------------------------------
// PDF
// ---------------------------------------------------------------------------

// SetPageCount records how many pages the document has.
func (v *Viewer) SetPageCount(n int) error {
	if err := v.requireFormat(domain.FileFormatPDF); err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	v.pageCount = n
	if v.currentPage > n && n > 0 {
		v.currentPage = n
	}
	return nil
}

// PageLoaded records the intrinsic size of a rendered page.
func (v *Viewer) PageLoaded(page int, size Size) error {
	if err := v.requireFormat(domain.FileFormatPDF); err != nil {
		return err
	}
	if page < 1 || (v.pageCount > 0 && page > v.pageCount) {
		return fmt.Errorf("page %d: %w", page, domain.ErrValidation)
	}
	v.pageSizes[page] = size
	if v.fitMode != FitNone {
		v.zoomIndex = nearest(v.ladder, v.EffectiveZoom())
	}
	return nil
}

// ScrollToPage records the page currently in view.
func (v *Viewer) ScrollToPage(page int) error {
	if err := v.requireFormat(domain.FileFormatPDF); err != nil {
		return err
	}
	if page < 1 || (v.pageCount > 0 && page > v.pageCount) {
		return fmt.Errorf("page %d: %w", page, domain.ErrValidation)
	}
	v.currentPage = page
	return nil
}

func (v *Viewer) largestPage() Size {
	var out Size
	for _, s := range v.pageSizes {
		if s.W > out.W {
			out.W = s.W
		}
		if s.H > out.H {
			out.H = s.H
		}
	}
	return out
}

func (v *Viewer) requireFormat(f domain.FileFormat) error {
	if !v.open {
		return ErrNotOpen
	}
	if v.bundle.File.Format != f {
		return ErrWrongFormat
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read path
// ---------------------------------------------------------------------------

// VisibleFeedback returns feedback for the selected version plus feedback
// that applies to the file in general.
func (v *Viewer) VisibleFeedback() []domain.Feedback {
	if !v.open {
		return nil
	}
	out := make([]domain.Feedback, 0, len(v.bundle.Feedback))
	for _, f := range v.bundle.Feedback {
		if f.VersionID == nil || (v.selected != nil && *f.VersionID == *v.selected) {
			out = append(out, f)
		}
	}
	return out
}

// Pins returns the numbered pins for page (PDF) or the current position.
func (v *Viewer) Pins(page int) []markup.Pin {
	if !v.open {
		return nil
	}
	format := v.bundle.File.Format
	ctx := markup.Context{Time: v.scrub, Page: page}
	visible := markup.Visible(format, v.VisibleFeedback(), ctx)

	var draft *domain.Locator
	if markup.DraftVisible(format, v.pending, ctx) {
		draft = v.pending
	}
	pins := markup.Pins(visible, draft)
	if v.hovered != nil {
		for i := range pins {
			pins[i].Highlight = !pins[i].Draft && pins[i].FeedbackID == *v.hovered
		}
	}
	return pins
}

// Highlight marks the feedback entry the pointer rests on, in the list or
// on a pin. A nil id clears it.
func (v *Viewer) Highlight(id *uuid.UUID) error {
	if !v.open {
		return ErrNotOpen
	}
	if id == nil {
		v.hovered = nil
		return nil
	}
	for _, f := range v.VisibleFeedback() {
		if f.ID == *id {
			hid := *id
			v.hovered = &hid
			return nil
		}
	}
	return fmt.Errorf("feedback %s: %w", *id, domain.ErrNotFound)
}

// Highlighted returns the hovered feedback id, or nil.
func (v *Viewer) Highlighted() *uuid.UUID {
	if v.hovered == nil {
		return nil
	}
	id := *v.hovered
	return &id
}
