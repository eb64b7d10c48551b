package rest

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/transport/middleware"
)

// tokenValidator checks session tokens.
type tokenValidator interface {
	Validate(token string) (string, uuid.UUID, error)
}

// RouterDeps holds everything NewRouter wires.
type RouterDeps struct {
	Health  *HealthHandler
	Session *SessionHandler
	Admin   *AdminHandler
	Tokens  tokenValidator
	Limiter *middleware.RateLimiter
	CORS    config.CORSConfig
	Auth    config.AuthConfig
	Logger  *slog.Logger

	// OpenPerMinute bounds share-link attempts per client address.
	OpenPerMinute int
}

// NewRouter builds the HTTP handler: probes, the share and session API,
// and admin routes, all behind the common middleware chain.
func NewRouter(d RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", d.Health.Live)
	mux.HandleFunc("GET /ready", d.Health.Ready)
	mux.HandleFunc("GET /health", d.Health.Health)

	open := http.Handler(http.HandlerFunc(d.Session.OpenSession))
	if d.Limiter != nil && d.OpenPerMinute > 0 {
		open = d.Limiter.Limit(d.OpenPerMinute)(open)
	}
	mux.Handle("POST /api/share/{shareID}/sessions", open)

	authed := middleware.SessionAuth(d.Tokens)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}
	handle("DELETE /api/sessions/{sid}", d.Session.CloseSession)
	handle("GET /api/sessions/{sid}/files", d.Session.ListFiles)
	handle("POST /api/sessions/{sid}/files/{fid}/open", d.Session.OpenFile)
	handle("POST /api/sessions/{sid}/files/{fid}/approve", d.Session.Approve)
	handle("POST /api/sessions/{sid}/files/{fid}/feedback", d.Session.SubmitFeedback)
	handle("GET /api/sessions/{sid}/files/{fid}/content", d.Session.Content)
	handle("POST /api/sessions/{sid}/next", d.Session.Next)
	handle("POST /api/sessions/{sid}/prev", d.Session.Prev)
	handle("GET /api/sessions/{sid}/viewer", d.Session.ViewerState)
	handle("DELETE /api/sessions/{sid}/viewer", d.Session.CloseViewer)
	handle("POST /api/sessions/{sid}/viewer/{event}", d.Session.ViewerEvent)

	if d.Admin != nil {
		admin := middleware.AdminOnly(d.Auth.AdminToken)
		mux.Handle("GET /admin/outbox/stats", admin(http.HandlerFunc(d.Admin.OutboxStats)))
		mux.Handle("GET /admin/outbox/failed", admin(http.HandlerFunc(d.Admin.OutboxFailed)))
		mux.Handle("POST /admin/outbox/retry", admin(http.HandlerFunc(d.Admin.OutboxRetry)))
	}

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.CORS(d.CORS),
	)(mux)
}
