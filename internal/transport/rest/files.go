package rest

import (
	"bytes"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/review"
)

type listFilesResponse struct {
	Filter     review.Filter  `json:"filter"`
	Files      []fileResponse `json:"files"`
	Counts     map[string]int `json:"counts"`
	OpenFileID *uuid.UUID     `json:"open_file_id,omitempty"`
	Toasts     []review.Toast `json:"toasts,omitempty"`
}

type approveResponse struct {
	FileID      uuid.UUID         `json:"file_id"`
	Previous    domain.FileStatus `json:"previous"`
	Changed     bool              `json:"changed"`
	AllApproved bool              `json:"all_approved"`
	NextFileID  *uuid.UUID        `json:"next_file_id,omitempty"`
}

type feedbackRequest struct {
	Text string `json:"text"`
}

type navigateResponse struct {
	FileID uuid.UUID `json:"file_id"`
}

func countsResponse(c map[domain.FileStatus]int) map[string]int {
	out := map[string]int{
		string(domain.FileStatusPending):      0,
		string(domain.FileStatusApproved):     0,
		string(domain.FileStatusNeedsChanges): 0,
	}
	for k, v := range c {
		out[string(k)] = v
	}
	return out
}

// ListFiles handles GET /api/sessions/{sid}/files?filter=. A filter in the
// query becomes the session's filter for later navigation.
func (h *SessionHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if f := r.URL.Query().Get("filter"); f != "" {
		if err := s.SetFilter(review.Filter(f)); err != nil {
			handleError(h.log, w, r, err)
			return
		}
	}

	files, err := s.Files()
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	counts, err := s.Counts()
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	resp := listFilesResponse{
		Filter: s.Filter(),
		Files:  toFileResponses(files),
		Counts: countsResponse(counts),
		Toasts: s.Toasts(),
	}
	if id, open := s.OpenFileID(); open {
		resp.OpenFileID = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

// OpenFile handles POST /api/sessions/{sid}/files/{fid}/open.
func (h *SessionHandler) OpenFile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.OpenFile(fileID); err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ViewerState())
}

// Next handles POST /api/sessions/{sid}/next.
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*review.Session).Next)
}

// Prev handles POST /api/sessions/{sid}/prev.
func (h *SessionHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*review.Session).Prev)
}

func (h *SessionHandler) navigate(w http.ResponseWriter, r *http.Request, step func(*review.Session) (uuid.UUID, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := step(s)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{FileID: id})
}

// Approve handles POST /api/sessions/{sid}/files/{fid}/approve.
func (h *SessionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.Approve(r.Context(), fileID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, approveResponse{
		FileID:      fileID,
		Previous:    res.Previous,
		Changed:     res.Changed,
		AllApproved: res.AllApproved,
		NextFileID:  res.Next,
	})
}

// SubmitFeedback handles POST /api/sessions/{sid}/files/{fid}/feedback.
// Blank text is accepted and ignored with 204.
func (h *SessionHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fb, err := s.SubmitFeedback(r.Context(), review.SubmitFeedbackInput{FileID: fileID, Text: req.Text})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	if fb == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackResponse(*fb))
}

// Content handles GET /api/sessions/{sid}/files/{fid}/content. Cached
// content is served directly with range support; otherwise the client is
// redirected to the stored URL.
func (h *SessionHandler) Content(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	fileID, ok := fileIDParam(w, r)
	if !ok {
		return
	}

	c, err := s.Content(r.Context(), fileID)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	if c.RedirectURL != "" {
		target := c.RedirectURL
		if h.signer != nil {
			target, err = h.signer.PublicURL(r.Context(), c.RedirectURL)
			if err != nil {
				handleError(h.log, w, r, err)
				return
			}
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	if c.Blob.ContentType != "" {
		w.Header().Set("Content-Type", c.Blob.ContentType)
	}
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("ETag", `"`+c.Handle+`"`)
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(c.Blob.Data))
}
