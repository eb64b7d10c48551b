package viewer

import "math"

// DefaultLadder is used when no ladder is configured.
var DefaultLadder = []int{25, 50, 75, 100, 125, 150, 200, 300, 400}

// FitMode selects how the zoom is derived.
type FitMode string

const (
	FitNone   FitMode = "none"
	FitWidth  FitMode = "fit_width"
	FitHeight FitMode = "fit_height"
)

func (m FitMode) IsValid() bool {
	switch m {
	case FitNone, FitWidth, FitHeight:
		return true
	}
	return false
}

// Size is a measured width and height in layout units.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (s Size) valid() bool { return s.W > 0 && s.H > 0 }

const zoomEpsilon = 1e-6

// stepUp returns the first ladder index whose value is above from.
func stepUp(ladder []int, from float64) int {
	for i, v := range ladder {
		if float64(v) > from+zoomEpsilon {
			return i
		}
	}
	return len(ladder) - 1
}

// stepDown returns the last ladder index whose value is below from.
func stepDown(ladder []int, from float64) int {
	for i := len(ladder) - 1; i >= 0; i-- {
		if float64(ladder[i]) < from-zoomEpsilon {
			return i
		}
	}
	return 0
}

// nearest returns the ladder index closest to z. Ties go to the lower step.
func nearest(ladder []int, z float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range ladder {
		if d := math.Abs(float64(v) - z); d < bestDist-zoomEpsilon {
			best, bestDist = i, d
		}
	}
	return best
}

func indexOf(ladder []int, v int) int {
	for i, s := range ladder {
		if s == v {
			return i
		}
	}
	return len(ladder) / 2
}
