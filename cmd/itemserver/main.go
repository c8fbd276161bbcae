package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/config"
	"github.com/udisondev/itemforge/internal/db"
	"github.com/udisondev/itemforge/internal/itemserver"
)

const ConfigPath = "config/itemserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadServer(ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("itemforge server starting", "log_level", cfg.LogLevel)

	cat, err := catalog.LoadFile(cfg.Itemization.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	stats := cat.Stats()
	slog.Info("catalog loaded",
		"path", cfg.Itemization.CatalogPath,
		"items", stats.Items,
		"affixes", stats.Affixes,
		"drop_tables", stats.DropTables)

	var store itemserver.Store
	if cfg.Persistence.Enabled {
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		store = db.NewInventoryRepository(database.Pool())
	}

	srv := itemserver.New(cfg, cat, store)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Feed.Enabled {
		g.Go(func() error {
			slog.Info("starting feed server", "address", cfg.Feed.Addr())
			if err := srv.Run(gctx); err != nil {
				return fmt.Errorf("feed server: %w", err)
			}
			return nil
		})
	}

	if store != nil {
		g.Go(func() error {
			slog.Info("starting inventory flusher", "interval", cfg.Persistence.FlushInterval)
			if err := srv.RunFlusher(gctx, cfg.Persistence.FlushInterval); err != nil {
				return fmt.Errorf("inventory flusher: %w", err)
			}
			return nil
		})
	}

	if cfg.Ground.ExpireAfter > 0 {
		g.Go(func() error {
			slog.Info("starting ground sweeper",
				"interval", cfg.Ground.SweepInterval,
				"expire_after", cfg.Ground.ExpireAfter)
			return srv.RunGroundSweeper(gctx, cfg.Ground.SweepInterval, cfg.Ground.ExpireAfter)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
