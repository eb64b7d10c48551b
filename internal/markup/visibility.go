package markup

import (
	"math"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// VideoTolerance is the half-width, in seconds, of the window in which a
// timestamped pin stays visible around the playback position.
const VideoTolerance = 3.0

// Context is the viewer position the read path filters against.
type Context struct {
	Time float64
	Page int
}

// VisibleAt returns feedback whose timestamp lies within VideoTolerance of t.
func VisibleAt(feedback []domain.Feedback, t float64) []domain.Feedback {
	return filter(feedback, func(l *domain.Locator) bool {
		return nearTime(l, t)
	})
}

// VisibleOnPage returns feedback pinned to the given page.
func VisibleOnPage(feedback []domain.Feedback, page int) []domain.Feedback {
	return filter(feedback, func(l *domain.Locator) bool {
		return onPage(l, page)
	})
}

// VisibleOnImage returns every feedback entry that carries a locator.
func VisibleOnImage(feedback []domain.Feedback) []domain.Feedback {
	return filter(feedback, func(*domain.Locator) bool { return true })
}

// Visible dispatches to the filter for format.
func Visible(format domain.FileFormat, feedback []domain.Feedback, ctx Context) []domain.Feedback {
	switch format {
	case domain.FileFormatVideo:
		return VisibleAt(feedback, ctx.Time)
	case domain.FileFormatPDF:
		return VisibleOnPage(feedback, ctx.Page)
	default:
		return VisibleOnImage(feedback)
	}
}

// DraftVisible reports whether an unsubmitted locator belongs to ctx.
func DraftVisible(format domain.FileFormat, draft *domain.Locator, ctx Context) bool {
	if draft == nil {
		return false
	}
	switch format {
	case domain.FileFormatVideo:
		return nearTime(draft, ctx.Time)
	case domain.FileFormatPDF:
		return onPage(draft, ctx.Page)
	default:
		return true
	}
}

func nearTime(l *domain.Locator, t float64) bool {
	return l.Timestamp != nil && math.Abs(*l.Timestamp-t) <= VideoTolerance
}

func onPage(l *domain.Locator, page int) bool {
	return l.Page != nil && *l.Page == page
}

func filter(feedback []domain.Feedback, keep func(*domain.Locator) bool) []domain.Feedback {
	out := make([]domain.Feedback, 0, len(feedback))
	for _, f := range feedback {
		if f.Locator != nil && keep(f.Locator) {
			out = append(out, f)
		}
	}
	return out
}

// Pin is a numbered marker ready to be drawn over the content.
type Pin struct {
	Number     int       `json:"number"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	FeedbackID uuid.UUID `json:"feedback_id,omitempty"`
	Text       string    `json:"text,omitempty"`
	Draft      bool      `json:"draft"`
	Highlight  bool      `json:"highlight,omitempty"`
}

// Pins numbers visible feedback 1..n in enumeration order. A draft, when
// present, is always numbered n+1.
func Pins(visible []domain.Feedback, draft *domain.Locator) []Pin {
	pins := make([]Pin, 0, len(visible)+1)
	for _, f := range visible {
		if f.Locator == nil {
			continue
		}
		pins = append(pins, Pin{
			Number:     len(pins) + 1,
			X:          f.Locator.X,
			Y:          f.Locator.Y,
			FeedbackID: f.ID,
			Text:       f.Text,
		})
	}
	if draft != nil {
		pins = append(pins, Pin{Number: len(pins) + 1, X: draft.X, Y: draft.Y, Draft: true})
	}
	return pins
}
