package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/realitybench/internal/archive"
	"github.com/playperu/realitybench/internal/config"
	"github.com/playperu/realitybench/internal/database"
	"github.com/playperu/realitybench/internal/handler/health"
	"github.com/playperu/realitybench/internal/migrations"
	"github.com/playperu/realitybench/internal/provider"
	"github.com/playperu/realitybench/internal/relay"
	"github.com/playperu/realitybench/internal/runner"
	"github.com/playperu/realitybench/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", applied)
	store := archive.New(db)

	checks := map[string]health.Checker{
		"sqlite": store,
		"redis":  nil,
	}

	// --- Redis (optional) ---
	var pub *relay.Publisher
	if cfg.RedisURL != "" {
		rdb, err := relay.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		pub = relay.New(rdb)
		checks["redis"] = pub
		logger.Info("connected to redis")
	}

	// --- Games ---
	prov, err := provider.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	rn := runner.New(runner.Config{
		Provider: prov,
		Logger:   logger,
		Archive:  store,
		Relay:    pub,
		Seed:     cfg.GameSeed,
	})

	g, gctx := errgroup.WithContext(ctx)
	live := server.NewGames(gctx, rn, store, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Archive: store,
		Games:   live,
		Runner:  rn,
		Health:  health.NewHandler(logger, checks).Routes(),
	})

	// --- Run ---
	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		if err := live.ResumeRunning(gctx); err != nil {
			logger.Error("resuming unfinished games", "error", err)
		}
		<-gctx.Done()
		// Runs see the same cancellation and stay resumable.
		return live.Wait()
	})

	return g.Wait()
}
