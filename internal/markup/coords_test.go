package markup

import (
	"errors"
	"math"
	"testing"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

type fakePlayer struct {
	playing bool
	time    float64
	// advance simulates playback moving on until paused.
	advance float64
	calls   []string
}

func (p *fakePlayer) Playing() bool { return p.playing }

func (p *fakePlayer) Pause() {
	p.calls = append(p.calls, "pause")
	p.playing = false
}

func (p *fakePlayer) CurrentTime() float64 {
	p.calls = append(p.calls, "time")
	if p.playing {
		p.time += p.advance
	}
	return p.time
}

func TestPercent_Corners(t *testing.T) {
	t.Parallel()

	box := Box{Left: 40, Top: 20, Width: 800, Height: 600}
	tests := []struct {
		name  string
		click Point
		wantX float64
		wantY float64
	}{
		{"center", box.Center(), 50, 50},
		{"top-left", Point{X: 40, Y: 20}, 0, 0},
		{"bottom-right", Point{X: 840, Y: 620}, 100, 100},
		{"quarter", Point{X: 240, Y: 170}, 25, 25},
		{"outside clamps low", Point{X: 0, Y: 0}, 0, 0},
		{"outside clamps high", Point{X: 9000, Y: 9000}, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			x, y := Percent(tt.click, box)
			if !approx(x, tt.wantX) || !approx(y, tt.wantY) {
				t.Errorf("Percent() = (%v, %v), want (%v, %v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestPercent_DegenerateBox(t *testing.T) {
	t.Parallel()

	x, y := Percent(Point{X: 5, Y: 5}, Box{Width: 0, Height: -1})
	if x != 0 || y != 0 {
		t.Errorf("Percent() on empty box = (%v, %v), want (0, 0)", x, y)
	}
}

func TestImageLocator(t *testing.T) {
	t.Parallel()

	loc := ImageLocator(Point{X: 50, Y: 100}, Box{Width: 100, Height: 200})
	if !approx(loc.X, 50) || !approx(loc.Y, 50) {
		t.Errorf("got (%v, %v), want (50, 50)", loc.X, loc.Y)
	}
	if loc.Timestamp != nil || loc.Page != nil {
		t.Error("image locator must not carry timestamp or page")
	}
}

func TestVideoLocator_PausesBeforeReadingTime(t *testing.T) {
	t.Parallel()

	p := &fakePlayer{playing: true, time: 12, advance: 0.25}
	loc := VideoLocator(Point{X: 10, Y: 10}, Box{Width: 100, Height: 100}, p)

	if p.playing {
		t.Error("player should be paused")
	}
	if len(p.calls) != 2 || p.calls[0] != "pause" || p.calls[1] != "time" {
		t.Fatalf("call order = %v, want [pause time]", p.calls)
	}
	if loc.Timestamp == nil || *loc.Timestamp != 12 {
		t.Errorf("timestamp = %v, want 12 (the pause point)", loc.Timestamp)
	}
}

func TestVideoLocator_AlreadyPaused(t *testing.T) {
	t.Parallel()

	p := &fakePlayer{time: 4.5}
	loc := VideoLocator(Point{X: 0, Y: 0}, Box{Width: 10, Height: 10}, p)

	for _, c := range p.calls {
		if c == "pause" {
			t.Error("paused player should not be paused again")
		}
	}
	if *loc.Timestamp != 4.5 {
		t.Errorf("timestamp = %v, want 4.5", *loc.Timestamp)
	}
}

func TestPDFLocator(t *testing.T) {
	t.Parallel()

	loc, err := PDFLocator(Point{X: 300, Y: 1100}, Box{Left: 0, Top: 1000, Width: 600, Height: 800}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Page == nil || *loc.Page != 2 {
		t.Errorf("page = %v, want 2", loc.Page)
	}
	if !approx(loc.X, 50) || !approx(loc.Y, 12.5) {
		t.Errorf("got (%v, %v), want (50, 12.5)", loc.X, loc.Y)
	}

	if _, err := PDFLocator(Point{}, Box{Width: 1, Height: 1}, 0); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("page 0: expected ErrValidation, got %v", err)
	}
}
