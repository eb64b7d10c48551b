package viewer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/markup"
)

// State is what a presentation layer needs to draw the open file.
type State struct {
	Open              bool              `json:"open"`
	FileID            uuid.UUID         `json:"file_id"`
	Format            domain.FileFormat `json:"format,omitempty"`
	SelectedVersionID *uuid.UUID        `json:"selected_version_id,omitempty"`
	VersionNumber     int               `json:"version_number,omitempty"`
	SourceURL         string            `json:"source_url,omitempty"`

	ZoomIndex     int     `json:"zoom_index"`
	ZoomPercent   int     `json:"zoom_percent"`
	EffectiveZoom float64 `json:"effective_zoom"`
	FitMode       FitMode `json:"fit_mode"`
	ContentWidth  float64 `json:"content_width,omitempty"`

	MarkupMode    bool            `json:"markup_mode"`
	PendingMarkup *domain.Locator `json:"pending_markup,omitempty"`
	Highlighted   *uuid.UUID      `json:"highlighted,omitempty"`

	Playing       bool    `json:"playing,omitempty"`
	ScrubPosition float64 `json:"scrub_position,omitempty"`
	Duration      float64 `json:"duration,omitempty"`

	PageCount   int `json:"page_count,omitempty"`
	CurrentPage int `json:"current_page,omitempty"`

	Pins     []markup.Pin         `json:"pins,omitempty"`
	PagePins map[int][]markup.Pin `json:"page_pins,omitempty"`
}

// State returns a snapshot of the viewer.
func (v *Viewer) State() State {
	if !v.open {
		return State{ZoomIndex: v.zoomIndex, ZoomPercent: v.ladder[v.zoomIndex], FitMode: v.fitMode}
	}

	s := State{
		Open:          true,
		FileID:        v.bundle.File.ID,
		Format:        v.bundle.File.Format,
		ZoomIndex:     v.zoomIndex,
		ZoomPercent:   v.ladder[v.zoomIndex],
		EffectiveZoom: v.EffectiveZoom(),
		FitMode:       v.fitMode,
		ContentWidth:  v.ContentWidth(),
		MarkupMode:    v.markupMode,
		PendingMarkup: v.PendingMarkup(),
		Highlighted:   v.Highlighted(),
	}
	if ver := v.SelectedVersion(); ver != nil {
		id := ver.ID
		s.SelectedVersionID = &id
		s.VersionNumber = v.bundle.VersionNumber(id)
		s.SourceURL = ver.URL
	}

	switch v.bundle.File.Format {
	case domain.FileFormatVideo:
		s.Playing = v.playing
		s.ScrubPosition = v.scrub
		s.Duration = v.duration
		s.Pins = v.Pins(0)
	case domain.FileFormatPDF:
		s.PageCount = v.pageCount
		s.CurrentPage = v.currentPage
		s.PagePins = make(map[int][]markup.Pin, v.pageCount)
		for p := 1; p <= v.pageCount; p++ {
			if pins := v.Pins(p); len(pins) > 0 {
				s.PagePins[p] = pins
			}
		}
	default:
		s.Pins = v.Pins(0)
	}
	return s
}

// EventType names a viewer event.
type EventType string

const (
	EventSwitchVersion   EventType = "switch_version"
	EventZoomIn          EventType = "zoom_in"
	EventZoomOut         EventType = "zoom_out"
	EventToggleFitWidth  EventType = "toggle_fit_width"
	EventToggleFitHeight EventType = "toggle_fit_height"
	EventDoubleClick     EventType = "double_click"
	EventMarkupMode      EventType = "markup_mode"
	EventClick           EventType = "click"
	EventClearMarkup     EventType = "clear_markup"
	EventMeasure         EventType = "measure"
	EventMediaLoaded     EventType = "media_loaded"
	EventPlay            EventType = "play"
	EventPause           EventType = "pause"
	EventSeek            EventType = "seek"
	EventDuration        EventType = "duration"
	EventPageCount       EventType = "page_count"
	EventPageLoaded      EventType = "page_loaded"
	EventScrollToPage    EventType = "scroll_to_page"
	EventHighlight       EventType = "highlight"
)

// Event is a discrete input to the viewer. Only the fields the type uses are read.
type Event struct {
	Type      EventType    `json:"type"`
	VersionID uuid.UUID    `json:"version_id,omitempty"`
	Feedback  *uuid.UUID   `json:"feedback_id,omitempty"`
	On        bool         `json:"on,omitempty"`
	Point     markup.Point `json:"point"`
	Box       markup.Box   `json:"box"`
	Page      int          `json:"page,omitempty"`
	Time      float64      `json:"time,omitempty"`
	Count     int          `json:"count,omitempty"`
	Size      Size         `json:"size"`
}

// Apply dispatches ev to the matching transition.
func (v *Viewer) Apply(ev Event) error {
	switch ev.Type {
	case EventSwitchVersion:
		return v.SwitchVersion(ev.VersionID)
	case EventZoomIn:
		return v.ZoomIn()
	case EventZoomOut:
		return v.ZoomOut()
	case EventToggleFitWidth:
		return v.ToggleFitWidth()
	case EventToggleFitHeight:
		return v.ToggleFitHeight()
	case EventDoubleClick:
		_, err := v.DoubleClick()
		return err
	case EventMarkupMode:
		return v.SetMarkupMode(ev.On)
	case EventClick:
		_, err := v.Click(ev.Point, ev.Box, ev.Page)
		return err
	case EventClearMarkup:
		if !v.open {
			return ErrNotOpen
		}
		v.ClearMarkup()
		return nil
	case EventMeasure:
		v.Measure(ev.Size)
		return nil
	case EventMediaLoaded:
		return v.MediaLoaded(ev.Size)
	case EventPlay:
		return v.Play()
	case EventPause:
		if err := v.requireFormat(domain.FileFormatVideo); err != nil {
			return err
		}
		v.Pause()
		return nil
	case EventSeek:
		return v.Seek(ev.Time)
	case EventDuration:
		return v.SetDuration(ev.Time)
	case EventPageCount:
		return v.SetPageCount(ev.Count)
	case EventPageLoaded:
		return v.PageLoaded(ev.Page, ev.Size)
	case EventScrollToPage:
		return v.ScrollToPage(ev.Page)
	case EventHighlight:
		return v.Highlight(ev.Feedback)
	}
	return domain.NewValidationError("type", fmt.Sprintf("unknown viewer event %q", ev.Type))
}
