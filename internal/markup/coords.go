// Package markup holds the pure coordinate math for placing and filtering
// positional feedback. Nothing here knows about rendering.
package markup

import (
	"fmt"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Point is a pointer position in the same coordinate space as Box.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the unscaled content region a click landed in.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of b.
func (b Box) Center() Point {
	return Point{X: b.Left + b.Width/2, Y: b.Top + b.Height/2}
}

// Player is the slice of a video element markup placement needs.
type Player interface {
	Playing() bool
	Pause()
	CurrentTime() float64
}

// Percent maps a click to percentages of box, clamped to [0,100].
// A degenerate box maps to 0.
func Percent(click Point, box Box) (x, y float64) {
	return axisPercent(click.X-box.Left, box.Width), axisPercent(click.Y-box.Top, box.Height)
}

func axisPercent(offset, size float64) float64 {
	if size <= 0 {
		return 0
	}
	return clamp(offset/size*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ImageLocator builds a locator for a still image.
func ImageLocator(click Point, box Box) domain.Locator {
	x, y := Percent(click, box)
	return domain.Locator{X: x, Y: y}
}

// VideoLocator builds a locator stamped with the playback position.
// A playing video is paused before the time is read.
func VideoLocator(click Point, box Box, p Player) domain.Locator {
	if p.Playing() {
		p.Pause()
	}
	ts := p.CurrentTime()
	if ts < 0 {
		ts = 0
	}
	x, y := Percent(click, box)
	return domain.Locator{X: x, Y: y, Timestamp: &ts}
}

// PDFLocator builds a locator relative to the clicked page. page is 1-based.
func PDFLocator(click Point, pageBox Box, page int) (domain.Locator, error) {
	if page < 1 {
		return domain.Locator{}, fmt.Errorf("pdf page %d: %w", page, domain.ErrValidation)
	}
	x, y := Percent(click, pageBox)
	return domain.Locator{X: x, Y: y, Page: &page}, nil
}
