package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/medportal/internal/app"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/queue"
	"github.com/nikhilbhutani/medportal/internal/queue/workers"
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
	cfg.Processing.QueueMode = "asynq"
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency:  cfg.Processing.WorkerConcurrency,
			Logger:       slogAdapter{},
			ErrorHandler: asynq.ErrorHandlerFunc(logTaskError),
		},
	)

	documentWorker := workers.NewDocumentWorker(a.Processor())
	mux := queue.NewServeMux(asynq.HandlerFunc(documentWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Processing.WorkerConcurrency)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func logTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	slog.Error("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
}
