package blobcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultMaxBytes caps a single materialized resource.
const DefaultMaxBytes = 512 << 20

// HTTPFetcher downloads resources over HTTP(S).
type HTTPFetcher struct {
	httpClient *http.Client
	maxBytes   int64
	log        *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		log:        logger.With("adapter", "http_fetcher"),
	}
}

// Fetch performs a GET and returns the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("http fetch: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Blob{}, fmt.Errorf("http fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Blob{}, fmt.Errorf("http fetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Blob{}, fmt.Errorf("http fetch: body exceeds %d bytes", f.maxBytes)
	}

	f.log.DebugContext(ctx, "fetched",
		slog.String("url", rawURL),
		slog.Int("size", len(data)),
	)

	return Blob{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Mux routes a fetch to the Fetcher registered for the URL scheme.
type Mux map[string]Fetcher

// Fetch implements Fetcher.
func (m Mux) Fetch(ctx context.Context, rawURL string) (Blob, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Blob{}, fmt.Errorf("parse source url: %w", err)
	}
	f, ok := m[u.Scheme]
	if !ok {
		return Blob{}, fmt.Errorf("no fetcher for scheme %q", u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}
