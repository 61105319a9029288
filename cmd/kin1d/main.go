package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/kinematics1d/internal/api"
	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/config"
	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/live"
	"github.com/star/kinematics1d/internal/solver"
	"github.com/star/kinematics1d/internal/stream"
	"github.com/star/kinematics1d/web"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(os.Getenv, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}

	resCache := cache.NewResolutionCache(cfg.Cache, logger)

	// A nil *history.Store must not reach the solver as a non-nil Recorder.
	var store *history.Store
	var recorder solver.Recorder
	if cfg.History.Path != "" {
		store, err = history.NewStore(cfg.History.Path, cfg.History.MaxRecords)
		if err != nil {
			logger.Error("failed to open history database", "path", cfg.History.Path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder = store
	}

	svc := solver.NewService(cfg.Solver, resCache, recorder, logger)
	streamHandler := stream.NewHandler(svc, cfg.Stream, logger)
	liveHandler := live.NewHandler(svc, cfg.Live, logger)

	srv := api.NewServer(cfg.HTTPAddr, logger, api.Options{
		Auth:       cfg.Auth,
		TrustProxy: cfg.TrustProxy,
		MaxSamples: cfg.Stream.MaxSamples,
		Solver:     svc,
		Cache:      resCache,
		History:    store,
		Stream:     streamHandler,
		Live:       liveHandler,
		Static:     web.Content,
		About: api.About{
			AppURL:           cfg.AppURL,
			OnCloud:          cfg.OnCloud,
			DefaultPrecision: cfg.Solver.DefaultPrecision,
			Combinations:     len(kinematics.Combinations()),
		},
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cache background sweeper.
	go resCache.Start(ctx)

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"history_enabled", store != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
