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

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/api"
	"github.com/nikhilbhutani/medportal/internal/api/handlers"
	"github.com/nikhilbhutani/medportal/internal/app"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/document"
	"github.com/nikhilbhutani/medportal/internal/queue"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var (
		q      document.Queue
		inline *queue.InlineQueue
	)
	switch cfg.Processing.QueueMode {
	case "asynq":
		client := queue.NewClient(cfg.Redis, cfg.Processing.JobTimeout)
		defer client.Close()
		q = client
	default:
		inline = queue.NewInlineQueue(a.Processor(), cfg.Processing.WorkerConcurrency, cfg.Processing.JobTimeout)
		q = inline
	}

	deps := api.Deps{
		Accounts:  account.NewService(a.Accounts),
		Documents: a.Documents(q),
		Checks:    map[string]handlers.Pinger{},
	}
	if local, ok := a.Blobs.(*storage.LocalStore); ok {
		deps.Files = local
	}
	if a.DB != nil {
		deps.Checks["database"] = a.DB
	}
	if a.Cache != nil {
		deps.Checks["redis"] = a.Cache
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg, deps).Setup(ctx),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	if inline != nil {
		if err := inline.Shutdown(shutdownCtx); err != nil {
			slog.Warn("processing jobs still running at exit", "error", err)
		}
	}
	slog.Info("server stopped")
}
