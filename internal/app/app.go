// Package app assembles the portal's services from configuration. The API
// server, the queue worker and portalctl all start from Build.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/audit"
	"github.com/nikhilbhutani/medportal/internal/cache"
	"github.com/nikhilbhutani/medportal/internal/config"
	"github.com/nikhilbhutani/medportal/internal/database"
	"github.com/nikhilbhutani/medportal/internal/document"
	"github.com/nikhilbhutani/medportal/internal/llm"
	"github.com/nikhilbhutani/medportal/internal/storage"
)

type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Cache    *cache.Cache
	Audit    *audit.Service
	Accounts account.Repository
	Blobs    storage.BlobStore
	Chain    *llm.Chain

	closers []func()
}

// Build connects to the configured backends. Postgres is required only for
// the postgres account backend; Redis is required only in asynq mode.
// Otherwise both are used when reachable and skipped when not.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Database.URL != "" {
		pool, err := database.NewPool(ctx, cfg.Database)
		switch {
		case err == nil:
			a.DB = pool
			a.closers = append(a.closers, pool.Close)
			if err := database.RunMigrations(ctx, pool, database.MigrationsFS(cfg.Database.MigrationsPath)); err != nil {
				a.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		case cfg.Accounts.Backend == "postgres":
			return nil, err
		default:
			slog.Warn("database unavailable, running without usage log", "error", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		if cfg.Processing.QueueMode == "asynq" {
			a.Close()
			return nil, fmt.Errorf("redis required for asynq queue: %w", err)
		}
		slog.Warn("redis unavailable, running without report cache", "error", err)
	} else {
		a.Redis = rdb
		a.Cache = cache.NewCache(rdb, "medportal:")
		a.closers = append(a.closers, func() { rdb.Close() })
	}

	switch cfg.Accounts.Backend {
	case "postgres":
		a.Accounts = account.NewPostgresRepository(a.DB)
	default:
		repo, err := account.NewFileRepository(cfg.Accounts.FilePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Accounts = repo
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	a.Blobs = blobs

	var recorder llm.UsageRecorder = audit.LogRecorder{}
	if a.DB != nil {
		a.Audit = audit.NewService(a.DB)
		recorder = a.Audit
	}
	chain, err := llm.NewChainFromConfig(cfg.LLM, recorder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("model chain: %w", err)
	}
	a.Chain = chain

	slog.Info("services ready",
		"accounts", cfg.Accounts.Backend,
		"storage", cfg.Storage.Backend,
		"queue", cfg.Processing.QueueMode,
		"database", a.DB != nil,
		"redis", a.Redis != nil,
	)
	return a, nil
}

// Processor returns the detached processing runner.
func (a *App) Processor() *document.Processor {
	return document.NewProcessor(a.Accounts, a.Blobs, a.Chain, a.Config.LLM.InlineSource)
}

// Documents returns the document service wired to queue.
func (a *App) Documents(queue document.Queue) *document.Service {
	opts := document.Options{
		MaxUploadBytes: a.Config.Processing.MaxUploadBytes,
		StaleAfter:     a.Config.Processing.StaleAfter,
	}
	if a.Cache != nil {
		opts.Cache = a.Cache
	}
	return document.NewService(a.Accounts, a.Blobs, queue, opts)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
