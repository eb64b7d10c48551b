package rest

import (
	"net/http"

	"github.com/heartmarshall/proofdesk/internal/viewer"
)

// ViewerState handles GET /api/sessions/{sid}/viewer.
func (h *SessionHandler) ViewerState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ViewerState())
}

// ViewerEvent handles POST /api/sessions/{sid}/viewer/{event}. The body
// carries the event's arguments; the type comes from the path.
func (h *SessionHandler) ViewerEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var ev viewer.Event
	if !decodeJSON(w, r, &ev) {
		return
	}
	ev.Type = viewer.EventType(r.PathValue("event"))

	state, err := s.ApplyViewerEvent(ev)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CloseViewer handles DELETE /api/sessions/{sid}/viewer.
func (h *SessionHandler) CloseViewer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CloseFile(); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
