package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// apiKeys caches client API keys and their per-interval request limits.
var apiKeys struct {
	sync.RWMutex
	limits map[string]int
}

var keyDB struct {
	sync.Mutex
	dsn string
	db  *sql.DB
}

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that no key list has been loaded yet,
	// typically because Postgres was unreachable at startup.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

const (
	createKeysTable = `CREATE TABLE IF NOT EXISTS report_card_api_keys (
		api_key TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 30,
		owner TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	selectKeys = `SELECT api_key, rate_limit FROM report_card_api_keys;`
)

func postgresDSN(cfg PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	switch {
	case cfg.Host == "":
		return "", fmt.Errorf("postgres host is empty")
	case cfg.Database == "":
		return "", fmt.Errorf("postgres database is empty")
	case cfg.User == "":
		return "", fmt.Errorf("postgres user is empty")
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	hostPort := cfg.Host
	switch {
	case strings.HasPrefix(hostPort, "["):
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	case strings.Count(hostPort, ":") >= 2:
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	case !strings.Contains(hostPort, ":"):
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", cfg.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func openKeyDB(cfg PostgresConfig) (*sql.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	keyDB.Lock()
	defer keyDB.Unlock()

	if keyDB.db != nil && keyDB.dsn == dsn {
		return keyDB.db, nil
	}
	if keyDB.db != nil {
		_ = keyDB.db.Close()
		keyDB.db, keyDB.dsn = nil, ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	keyDB.db, keyDB.dsn = db, dsn
	return db, nil
}

// LoadTokensFromPostgres creates the key table if needed, reads every key
// with its rate limit and replaces the in-memory cache.
func LoadTokensFromPostgres(cfg PostgresConfig) error {
	db, err := openKeyDB(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, createKeysTable); err != nil {
		return fmt.Errorf("create api key table: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectKeys)
	if err != nil {
		return fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	limits := make(map[string]int)
	for rows.Next() {
		var key string
		var limit int
		if err := rows.Scan(&key, &limit); err != nil {
			return err
		}
		limits[key] = limit
	}
	if err := rows.Err(); err != nil {
		return err
	}

	apiKeys.Lock()
	apiKeys.limits = limits
	apiKeys.Unlock()
	return nil
}

// LoadTokensFromMap replaces the key cache with a copy of m. Used by tests
// and by deployments without Postgres.
func LoadTokensFromMap(m map[string]int) {
	limits := make(map[string]int, len(m))
	for k, v := range m {
		limits[k] = v
	}
	apiKeys.Lock()
	apiKeys.limits = limits
	apiKeys.Unlock()
}

// TokensReady reports whether the key cache has been loaded at least once.
func TokensReady() bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.limits != nil
}

// ValidateToken reports whether key is a known API key.
func ValidateToken(key string) bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	_, ok := apiKeys.limits[key]
	return ok
}

// GetRateLimit returns the request limit for key, or 0 (unlimited) when the
// key is unknown.
func GetRateLimit(key string) int {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.limits[key]
}

// RefreshTokensPeriodicallyFromPostgres reloads the key list every interval
// until stop is closed.
func RefreshTokensPeriodicallyFromPostgres(cfg PostgresConfig, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := LoadTokensFromPostgres(cfg); err != nil {
				Error("Failed to reload API keys", "error", err)
			}
		case <-stop:
			return
		}
	}
}

// ResetTokens drops the cached key list. TokensReady reports false until the
// next load.
func ResetTokens() {
	apiKeys.Lock()
	apiKeys.limits = nil
	apiKeys.Unlock()
}
