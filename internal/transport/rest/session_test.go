package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/blobcache"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
	"github.com/heartmarshall/proofdesk/internal/review"
	"github.com/heartmarshall/proofdesk/internal/service/share"
	"github.com/heartmarshall/proofdesk/internal/viewer"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fetcherFunc func(ctx context.Context, url string) (blobcache.Blob, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (blobcache.Blob, error) { return f(ctx, url) }

type nopPersister struct{}

func (nopPersister) EnqueueStatus(context.Context, uuid.UUID, domain.FileStatus) error { return nil }
func (nopPersister) EnqueueFeedback(context.Context, domain.Feedback) error { return nil }
func (nopPersister) EnqueueNotification(context.Context, domain.Notification) error { return nil }

type fakeShare struct {
	session *review.Session
	openErr error
	closed  []string
}

func (f *fakeShare) Open(_ context.Context, in share.OpenInput) (*share.OpenResult, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &share.OpenResult{Session: f.session, Token: "tok"}, nil
}

func (f *fakeShare) Session(id string, projectID uuid.UUID) (*review.Session, error) {
	if id != f.session.ID() {
		return nil, domain.ErrNotFound
	}
	if projectID != f.session.Project().ID {
		return nil, domain.ErrForbidden
	}
	return f.session, nil
}

func (f *fakeShare) CloseSession(id string) { f.closed = append(f.closed, id) }

type fakeValidator map[string]string

func (v fakeValidator) Validate(token string) (string, uuid.UUID, error) {
	sid, ok := v[token]
	if !ok {
		return "", uuid.Nil, errors.New("invalid token")
	}
	return sid, testProjectID, nil
}

type fakeSigner struct{}

func (fakeSigner) PublicURL(_ context.Context, raw string) (string, error) {
	return raw + "?signed=1", nil
}

type fakeOutbox struct {
	stats domain.OutboxStats
}

func (f *fakeOutbox) Stats(context.Context) (domain.OutboxStats, error) { return f.stats, nil }

func (f *fakeOutbox) Failed(context.Context, int) ([]domain.OutboxItem, error) {
	return []domain.OutboxItem{{ID: uuid.New(), Kind: domain.OutboxUpdateStatus, Status: domain.OutboxStatusFailed, Attempts: 5}}, nil
}

func (f *fakeOutbox) RetryFailed(context.Context) (int, error) { return 1, nil }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var testProjectID = uuid.MustParse("7a1c3f7e-0d4b-4f6a-9d0e-2b8f5c1a9e11")

type fixture struct {
	srv     *httptest.Server
	share   *fakeShare
	image   domain.FileBundle
	broken  domain.FileBundle
	session *review.Session
}

func bundle(name string, format domain.FileFormat, url string) domain.FileBundle {
	fileID := uuid.New()
	v := domain.Version{ID: uuid.New(), FileID: fileID, URL: url, CreatedAt: time.Now()}
	return domain.FileBundle{
		File: domain.File{
			ID:               fileID,
			ProjectID:        testProjectID,
			Name:             name,
			Format:           format,
			Status:           domain.FileStatusPending,
			CurrentVersionID: &v.ID,
		},
		CurrentVersion: &v,
		Versions:       []domain.Version{v},
	}
}

func newFixture(t *testing.T, signer urlSigner) *fixture {
	t.Helper()

	fetch := fetcherFunc(func(ctx context.Context, url string) (blobcache.Blob, error) {
		if strings.Contains(url, "broken") {
			return blobcache.Blob{}, errors.New("404")
		}
		return blobcache.Blob{Data: []byte("PNGDATA"), ContentType: "image/png"}, nil
	})
	cache, err := blobcache.New(config.CacheConfig{Capacity: 10, FetchTimeout: time.Second}, fetch, slog.Default())
	if err != nil {
		t.Fatalf("blobcache.New: %v", err)
	}
	t.Cleanup(cache.Close)

	image := bundle("hero.png", domain.FileFormatImage, "https://cdn.test/hero.png")
	broken := bundle("cut.mp4", domain.FileFormatVideo, "https://cdn.test/broken.mp4")
	project := domain.Project{ID: testProjectID, Name: "Launch", ShareID: "share-1", Active: true}
	cfg := config.ReviewConfig{
		AdvanceDelay:      time.Hour,
		ZoomLadder:        []int{25, 50, 75, 100, 125, 150, 200, 300, 400},
		ImageBaseFraction: 0.8,
	}
	session := review.NewSession(slog.Default(), cfg, "sess-1", project, []domain.FileBundle{image, broken}, cache, nopPersister{})
	t.Cleanup(session.Close)

	fs := &fakeShare{session: session}
	handler := NewRouter(RouterDeps{
		Health:  NewHealthHandler(&dbPingerMock{}, nil, "test"),
		Session: NewSessionHandler(fs, signer, slog.Default()),
		Admin:   NewAdminHandler(&fakeOutbox{stats: domain.OutboxStats{Pending: 1, Total: 1}}, slog.Default()),
		Tokens:  fakeValidator{"tok": "sess-1", "other": "sess-2"},
		CORS:    config.CORSConfig{AllowedOrigins: "*"},
		Auth:    config.AuthConfig{AdminToken: "admin-secret"},
		Logger:  slog.Default(),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, share: fs, image: image, broken: broken, session: session}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

// ---------------------------------------------------------------------------
// Share link
// ---------------------------------------------------------------------------

func TestOpenSession_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/share/share-1/sessions", "", `{"password":"x"}`)
	expectStatus(t, resp, http.StatusCreated)

	got := decode[openSessionResponse](t, resp)
	if got.Token != "tok" || got.SessionID != "sess-1" {
		t.Errorf("unexpected session %+v", got)
	}
	if len(got.Files) != 2 {
		t.Errorf("files = %d, want 2", len(got.Files))
	}
	if got.Counts["pending"] != 2 || got.Counts["approved"] != 0 {
		t.Errorf("counts = %v", got.Counts)
	}
	if got.Project.ID != testProjectID {
		t.Errorf("project = %v", got.Project.ID)
	}
}

func TestOpenSession_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		openErr error
		body    string
		want    int
	}{
		{name: "wrong password", openErr: domain.ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "inactive project", openErr: domain.ErrNotFound, want: http.StatusNotFound},
		{name: "validation", openErr: domain.NewValidationError("share_id", "required"), want: http.StatusBadRequest},
		{name: "store down", openErr: errors.New("connection refused"), want: http.StatusInternalServerError},
		{name: "malformed body", body: `{"password":`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.share.openErr = tt.openErr

			resp := f.do(t, http.MethodPost, "/api/share/share-1/sessions", "", tt.body)
			expectStatus(t, resp, tt.want)
			if got := decode[errorResponse](t, resp); got.Error == "" {
				t.Error("expected error message")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Session auth
// ---------------------------------------------------------------------------

func TestSessionRoutes_Auth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "missing token", path: "/api/sessions/sess-1/files", want: http.StatusUnauthorized},
		{name: "bad token", path: "/api/sessions/sess-1/files", token: "forged", want: http.StatusUnauthorized},
		{name: "other session", path: "/api/sessions/sess-1/files", token: "other", want: http.StatusForbidden},
		{name: "expired session", path: "/api/sessions/sess-2/files", token: "other", want: http.StatusNotFound},
		{name: "own session", path: "/api/sessions/sess-1/files", token: "tok", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			expectStatus(t, f.do(t, http.MethodGet, tt.path, tt.token, ""), tt.want)
		})
	}
}

func TestCloseSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/sessions/sess-1", "tok", ""), http.StatusNoContent)
	if len(f.share.closed) != 1 || f.share.closed[0] != "sess-1" {
		t.Errorf("closed = %v", f.share.closed)
	}
}

// ---------------------------------------------------------------------------
// Files and actions
// ---------------------------------------------------------------------------

func TestListFiles_Filter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	path := "/api/sessions/sess-1/files/" + f.image.File.ID.String() + "/approve"
	expectStatus(t, f.do(t, http.MethodPost, path, "tok", ""), http.StatusOK)

	resp := f.do(t, http.MethodGet, "/api/sessions/sess-1/files?filter=approved", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	got := decode[listFilesResponse](t, resp)

	if got.Filter != review.FilterApproved {
		t.Errorf("filter = %q", got.Filter)
	}
	if len(got.Files) != 1 || got.Files[0].ID != f.image.File.ID {
		t.Fatalf("files = %+v", got.Files)
	}
	if got.Counts["approved"] != 1 || got.Counts["pending"] != 1 {
		t.Errorf("counts = %v", got.Counts)
	}
	if len(got.Toasts) != 1 || got.Toasts[0].Kind != review.ToastApproved {
		t.Errorf("toasts = %+v", got.Toasts)
	}
}

func TestListFiles_UnknownFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/sessions/sess-1/files?filter=bogus", "tok", "")
	expectStatus(t, resp, http.StatusBadRequest)

	got := decode[errorResponse](t, resp)
	if len(got.Fields) != 1 || got.Fields[0].Field != "filter" {
		t.Errorf("fields = %+v", got.Fields)
	}
}

func TestApprove(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	path := "/api/sessions/sess-1/files/" + f.image.File.ID.String() + "/approve"
	resp := f.do(t, http.MethodPost, path, "tok", "")
	expectStatus(t, resp, http.StatusOK)
	got := decode[approveResponse](t, resp)
	if !got.Changed || got.Previous != domain.FileStatusPending || got.AllApproved {
		t.Errorf("unexpected result %+v", got)
	}

	resp = f.do(t, http.MethodPost, path, "tok", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[approveResponse](t, resp); got.Changed {
		t.Error("second approval must not change anything")
	}
}

func TestApprove_BadFileID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	expectStatus(t, f.do(t, http.MethodPost, "/api/sessions/sess-1/files/not-a-uuid/approve", "tok", ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/sessions/sess-1/files/"+uuid.NewString()+"/approve", "tok", ""), http.StatusNotFound)
}

func TestSubmitFeedback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	path := "/api/sessions/sess-1/files/" + f.image.File.ID.String() + "/feedback"

	expectStatus(t, f.do(t, http.MethodPost, path, "tok", `{"text":"   "}`), http.StatusNoContent)

	resp := f.do(t, http.MethodPost, path, "tok", `{"text":"logo too small"}`)
	expectStatus(t, resp, http.StatusCreated)
	got := decode[feedbackResponse](t, resp)
	if got.Text != "logo too small" || got.ID == uuid.Nil {
		t.Errorf("unexpected feedback %+v", got)
	}

	for _, b := range f.session.Snapshot() {
		if b.File.ID == f.image.File.ID && b.File.Status != domain.FileStatusNeedsChanges {
			t.Errorf("status = %s, want needs_changes", b.File.Status)
		}
	}
}

func TestSubmitFeedback_TooLong(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	path := "/api/sessions/sess-1/files/" + f.image.File.ID.String() + "/feedback"

	body, _ := json.Marshal(feedbackRequest{Text: strings.Repeat("a", review.MaxFeedbackLength+1)})
	expectStatus(t, f.do(t, http.MethodPost, path, "tok", string(body)), http.StatusBadRequest)
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/sessions/sess-1/next", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[navigateResponse](t, resp); got.FileID != f.image.File.ID {
		t.Errorf("first next = %v, want %v", got.FileID, f.image.File.ID)
	}

	resp = f.do(t, http.MethodPost, "/api/sessions/sess-1/next", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[navigateResponse](t, resp); got.FileID != f.broken.File.ID {
		t.Errorf("second next = %v, want %v", got.FileID, f.broken.File.ID)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/sessions/sess-1/next", "tok", ""), http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Viewer
// ---------------------------------------------------------------------------

func TestViewer_EventsRequireOpenFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	expectStatus(t, f.do(t, http.MethodPost, "/api/sessions/sess-1/viewer/zoom_in", "tok", ""), http.StatusConflict)
}

func TestViewer_OpenZoomAndClose(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodPost, "/api/sessions/sess-1/files/"+f.image.File.ID.String()+"/open", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	before := decode[viewer.State](t, resp)
	if !before.Open || before.FileID != f.image.File.ID {
		t.Fatalf("viewer not open on image: %+v", before)
	}

	resp = f.do(t, http.MethodPost, "/api/sessions/sess-1/viewer/zoom_in", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	after := decode[viewer.State](t, resp)
	if after.ZoomPercent <= before.ZoomPercent {
		t.Errorf("zoom %d -> %d, want increase", before.ZoomPercent, after.ZoomPercent)
	}

	resp = f.do(t, http.MethodPost, "/api/sessions/sess-1/viewer/markup_mode", "tok", `{"on":true}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[viewer.State](t, resp); !got.MarkupMode {
		t.Error("markup mode not enabled")
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/sessions/sess-1/viewer/teleport", "tok", ""), http.StatusBadRequest)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/sessions/sess-1/viewer", "tok", ""), http.StatusNoContent)
	resp = f.do(t, http.MethodGet, "/api/sessions/sess-1/viewer", "tok", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[viewer.State](t, resp); got.Open {
		t.Error("viewer still open")
	}
}

// ---------------------------------------------------------------------------
// Content
// ---------------------------------------------------------------------------

func TestContent_ServesCachedBytes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/api/sessions/sess-1/files/"+f.image.File.ID.String()+"/content", "tok", "")
	expectStatus(t, resp, http.StatusOK)

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "PNGDATA" {
		t.Errorf("body = %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if etag := resp.Header.Get("ETag"); !strings.Contains(etag, blobcache.HandlePrefix) {
		t.Errorf("ETag = %q, want cache handle", etag)
	}
}

func TestContent_RedirectsWhenUncached(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		signer urlSigner
		want   string
	}{
		{name: "raw url", want: "https://cdn.test/broken.mp4"},
		{name: "signed url", signer: fakeSigner{}, want: "https://cdn.test/broken.mp4?signed=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.signer)

			resp := f.do(t, http.MethodGet, "/api/sessions/sess-1/files/"+f.broken.File.ID.String()+"/content", "tok", "")
			expectStatus(t, resp, http.StatusFound)
			if loc := resp.Header.Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestAdmin_OutboxRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	expectStatus(t, f.do(t, http.MethodGet, "/admin/outbox/stats", "", ""), http.StatusForbidden)
	expectStatus(t, f.do(t, http.MethodGet, "/admin/outbox/stats", "tok", ""), http.StatusForbidden)

	resp := f.do(t, http.MethodGet, "/admin/outbox/stats", "admin-secret", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[outboxStatsResponse](t, resp); got.Pending != 1 || got.Total != 1 {
		t.Errorf("stats = %+v", got)
	}

	resp = f.do(t, http.MethodGet, "/admin/outbox/failed?limit=10", "admin-secret", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[[]outboxItemResponse](t, resp); len(got) != 1 || got[0].Attempts != 5 {
		t.Errorf("failed = %+v", got)
	}

	expectStatus(t, f.do(t, http.MethodGet, "/admin/outbox/failed?limit=0", "admin-secret", ""), http.StatusBadRequest)

	resp = f.do(t, http.MethodPost, "/admin/outbox/retry", "admin-secret", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]int](t, resp); got["requeued"] != 1 {
		t.Errorf("retry = %v", got)
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/live", "", "")
	expectStatus(t, resp, http.StatusOK)
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected request id header from the middleware chain")
	}
}
