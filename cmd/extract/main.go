package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/ETL/internal/config"
	"github.com/JonMunkholm/ETL/internal/core"
	"github.com/JonMunkholm/ETL/internal/history"
	"github.com/JonMunkholm/ETL/internal/logging"
	"github.com/JonMunkholm/ETL/internal/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"manifest", cfg.App.ManifestPath,
		"max_datasets", cfg.Pipeline.MaxConcurrentDatasets,
		"workers_per_dataset", cfg.Pipeline.WorkersPerDataset,
		"journal_enabled", cfg.Journal.Enabled,
		"history_enabled", cfg.Database.URL != "",
		"status_server", cfg.Server.Addr,
	)

	jobs, err := config.LoadManifest(cfg.App.ManifestPath, cfg.App.BaseDir)
	if err != nil {
		slog.Error("failed to load dataset manifest", "error", err)
		return 1
	}
	slog.Info("manifest loaded", "datasets", len(jobs))

	// Cancel cleanly on SIGINT/SIGTERM; the pipeline stops between files.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var hist *history.Store
	if cfg.Database.URL != "" {
		pool, err := newPool(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			return 1
		}
		defer pool.Close()

		hist = history.NewStore(pool)
		if err := hist.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare run history", "error", err)
			return 1
		}
	}

	var journal *core.RejectionJournal
	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if !filepath.IsAbs(path) && cfg.App.BaseDir != "" && cfg.App.BaseDir != "." {
			path = filepath.Join(cfg.App.BaseDir, path)
		}
		journal = core.NewRejectionJournal(path, cfg.Journal.RetryAttempts, slog.Default())
	}

	pipeline := core.NewPipeline(core.PipelineConfig{
		MaxConcurrentDatasets: cfg.Pipeline.MaxConcurrentDatasets,
		WorkersPerDataset:     cfg.Pipeline.WorkersPerDataset,
		Journal:               journal,
		Logger:                slog.Default(),
	})

	var server *web.Server
	if cfg.Server.Addr != "" {
		server = web.NewServer(pipeline, hist, cfg)
		go func() {
			slog.Info("status server starting", "addr", cfg.Server.Addr)
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server stopped", "error", err)
			}
		}()
	}

	result := pipeline.Run(ctx, jobs)

	totals := result.Totals()
	slog.Info("run finished",
		"run_id", result.RunID,
		"succeeded", result.Succeeded(),
		"datasets", len(result.Datasets),
		"files_seen", totals.FilesSeen,
		"accepted", totals.Accepted,
		"salvaged", totals.Salvaged,
		"rejected", totals.Rejected,
		"errors", totals.ErrorCount(),
		"duration", result.Duration,
	)
	for _, ds := range result.Datasets {
		if ds.State == core.StateFailed {
			msg := core.Describe(ds.Err)
			slog.Error("dataset failed",
				"dataset", ds.Dataset,
				"code", msg.Code,
				"message", msg.Message,
				"action", msg.Action,
			)
		}
	}

	if hist != nil {
		// The run context may already be cancelled; give the record its own.
		recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := hist.RecordRun(recordCtx, result); err != nil {
			slog.Warn("failed to record run history", "error", err)
		}
		cancel()
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown failed", "error", err)
		}
		cancel()
	}

	if !result.Succeeded() {
		return 1
	}
	return 0
}

// newPool builds the pgx pool from config and verifies connectivity.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
