package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/proofdesk/internal/adapter/notify"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres"
	"github.com/heartmarshall/proofdesk/internal/adapter/postgres/reviewstore"
	"github.com/heartmarshall/proofdesk/internal/auth"
	"github.com/heartmarshall/proofdesk/internal/blobcache"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/outbox"
	"github.com/heartmarshall/proofdesk/internal/service/share"
	"github.com/heartmarshall/proofdesk/internal/transport/middleware"
	"github.com/heartmarshall/proofdesk/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, connects to
// the data stores, starts the outbox worker and the session refresher, and
// serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("outbox_store", cfg.Outbox.Store),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	store := reviewstore.New(pool)

	obStore, closeStore, err := OpenOutboxStore(ctx, cfg.Outbox, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, err := notify.New(cfg.Notify, logger)
	if err != nil {
		return err
	}
	ob := outbox.New(cfg.Outbox, obStore, store, notifier, logger)
	reconciler := outbox.NewReconciler(store, obStore, logger)

	fetcher, storage, err := NewFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cache, err := blobcache.New(cfg.Cache, fetcher, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	tokens := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL)
	shares := share.NewService(logger, cfg.Review, store, tokens, reconciler, cache, ob)
	defer shares.Close()

	limiter := middleware.NewRateLimiter(time.Minute)
	defer limiter.Stop()

	sessionHandler := rest.NewSessionHandler(shares, nil, logger)
	if storage != nil {
		sessionHandler = rest.NewSessionHandler(shares, storage, logger)
	}

	var adminHandler *rest.AdminHandler
	if cfg.Auth.AdminToken != "" {
		adminHandler = rest.NewAdminHandler(ob, logger)
	}

	handler := rest.NewRouter(rest.RouterDeps{
		Health:        rest.NewHealthHandler(pool, ob, Version),
		Session:       sessionHandler,
		Admin:         adminHandler,
		Tokens:        tokens,
		Limiter:       limiter,
		CORS:          cfg.CORS,
		Auth:          cfg.Auth,
		Logger:        logger,
		OpenPerMinute: cfg.Server.ShareRateLimit,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ob.Run(gctx)
	})

	g.Go(func() error {
		return shares.Run(gctx, cfg.Outbox.ReconcileInterval)
	})

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", slog.String("error", err.Error()))
		}

		// Writes accepted after the last worker pass.
		res, err := ob.Flush(shutdownCtx)
		if err != nil {
			logger.Warn("final outbox flush incomplete", slog.String("error", err.Error()))
		} else {
			logger.Info("final outbox flush", slog.Int("done", res.Done), slog.Int("failed", res.Failed))
		}
		return nil
	})

	return g.Wait()
}
