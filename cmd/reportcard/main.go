package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"reportcard/internal/app"
	"reportcard/internal/assets"
	u "reportcard/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	rdb := newRedis(cfg)
	defer closeRedis(rdb)

	idleConnsClosed := make(chan struct{})
	if cfg.Auth.Postgres.Host != "" {
		if err := u.LoadTokensFromPostgres(cfg.Auth.Postgres); err != nil {
			u.Error("Failed to load API tokens", "error", err)
		}
		go u.RefreshTokensPeriodicallyFromPostgres(cfg.Auth.Postgres, time.Minute, idleConnsClosed)
	}

	loader := assets.DiskLoader{Dir: cfg.Assets.Dir, Paths: assets.PathsFromConfig(cfg.Assets)}
	deps, err := app.NewDeps(cfg, loader, rdb)
	if err != nil {
		u.Error("Failed to load report card assets", "template", cfg.AssetPath(cfg.Assets.Template), "error", err)
		os.Exit(1)
	}

	app := app.SetupApp(cfg, deps)

	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// newRedis returns the translation cache client, or nil when no Redis host
// is configured.
func newRedis(cfg u.Config) *redis.Client {
	if cfg.Cache.RedisHost == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.TranslationDB,
	})
}

// closeRedis closes rdb if it was opened.
func closeRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		u.Warn("Failed to close redis client", "error", err)
	}
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
