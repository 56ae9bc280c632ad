package main

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	u "reportcard/internal/utils"
)

func TestStartServer_GracefulShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	cfg := u.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":0"

	idleConnsClosed := make(chan struct{})
	go startServer(app, cfg, idleConnsClosed)

	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case <-idleConnsClosed:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for graceful shutdown")
	}
}

func TestNewRedis(t *testing.T) {
	cfg := u.DefaultConfig()
	if rdb := newRedis(cfg); rdb != nil {
		t.Fatalf("expected no client without redis_host")
	}

	cfg.Cache.RedisHost = "127.0.0.1:6390"
	cfg.Cache.TranslationDB = 3
	rdb := newRedis(cfg)
	if rdb == nil {
		t.Fatalf("expected a client")
	}
	defer rdb.Close()
	if got := rdb.Options().DB; got != 3 {
		t.Fatalf("expected db 3, got %d", got)
	}
}

func TestCloseRedis(t *testing.T) {
	closeRedis(nil)

	mr := miniredis.RunT(t)
	cfg := u.DefaultConfig()
	cfg.Cache.RedisHost = mr.Addr()
	rdb := newRedis(cfg)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping before close: %v", err)
	}

	closeRedis(rdb)
	if err := rdb.Ping(context.Background()).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Fatalf("expected redis.ErrClosed after close, got %v", err)
	}
}
