package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/proofdesk/internal/adapter/sqlite"
	"github.com/heartmarshall/proofdesk/internal/adapter/storage/s3"
	"github.com/heartmarshall/proofdesk/internal/blobcache"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/outbox"
)

// OpenOutboxStore opens the store selected by cfg.Store. The returned
// function releases it.
func OpenOutboxStore(ctx context.Context, cfg config.OutboxConfig, logger *slog.Logger) (outbox.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		logger.Warn("outbox uses the memory store; queued writes are lost on restart")
		return outbox.NewMemoryStore(), func() {}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("close outbox store", slog.String("error", err.Error()))
			}
		}
		return sqlite.NewOutboxStore(db), closeDB, nil
	}
	return nil, nil, fmt.Errorf("unknown outbox store %q", cfg.Store)
}

// NewFetcher builds the blob cache fetcher: plain HTTP(S) always, s3://
// when object storage is configured. The storage client is returned so it
// can also sign redirect URLs; it is nil when storage is disabled.
func NewFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobcache.Fetcher, *s3.Client, error) {
	httpFetcher := blobcache.NewHTTPFetcher(cfg.Cache.FetchTimeout, cfg.Cache.MaxBlobBytes, logger)
	mux := blobcache.Mux{
		"http":  httpFetcher,
		"https": httpFetcher,
	}

	if !cfg.Storage.Enabled() {
		return mux, nil, nil
	}

	client, err := s3.New(ctx, cfg.Storage, cfg.Cache.MaxBlobBytes, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("object storage: %w", err)
	}
	mux[s3.Scheme] = client
	return mux, client, nil
}
