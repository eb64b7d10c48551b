package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/review"
	"github.com/heartmarshall/proofdesk/internal/service/share"
	"github.com/heartmarshall/proofdesk/pkg/ctxutil"
)

// shareService defines the minimal interface needed by SessionHandler.
type shareService interface {
	Open(ctx context.Context, in share.OpenInput) (*share.OpenResult, error)
	Session(id string, projectID uuid.UUID) (*review.Session, error)
	CloseSession(id string)
}

// urlSigner turns stored version URLs into URLs a browser can fetch.
type urlSigner interface {
	PublicURL(ctx context.Context, raw string) (string, error)
}

// SessionHandler serves the review session endpoints.
type SessionHandler struct {
	svc    shareService
	signer urlSigner
	log    *slog.Logger
}

// NewSessionHandler creates a SessionHandler. signer may be nil, in which
// case content redirects use the stored URL as is.
func NewSessionHandler(svc shareService, signer urlSigner, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, signer: signer, log: logger.With("handler", "session")}
}

type openSessionRequest struct {
	Password string `json:"password"`
}

type openSessionResponse struct {
	SessionID string          `json:"session_id"`
	Token     string          `json:"token"`
	Project   projectResponse `json:"project"`
	Files     []fileResponse  `json:"files"`
	Counts    map[string]int  `json:"counts"`
}

// OpenSession handles POST /api/share/{shareID}/sessions.
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Open(r.Context(), share.OpenInput{
		ShareID:  r.PathValue("shareID"),
		Password: req.Password,
	})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	files, err := res.Session.Files()
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	counts, err := res.Session.Counts()
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, openSessionResponse{
		SessionID: res.Session.ID(),
		Token:     res.Token,
		Project:   toProjectResponse(res.Session.Project()),
		Files:     toFileResponses(files),
		Counts:    countsResponse(counts),
	})
}

// CloseSession handles DELETE /api/sessions/{sid}.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.svc.CloseSession(s.ID())
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {sid} path value against the token in the request
// context. A token may only address its own session.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*review.Session, bool) {
	sid := r.PathValue("sid")
	tokenSID, ok := ctxutil.SessionIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if sid != tokenSID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	projectID, ok := ctxutil.ProjectIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	s, err := h.svc.Session(sid, projectID)
	if err != nil {
		handleError(h.log, w, r, err)
		return nil, false
	}
	return s, true
}

func fileIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("fid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file id")
		return uuid.Nil, false
	}
	return id, true
}
