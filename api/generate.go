// Package handler exposes the report card service as a single serverless
// function. Uploads stay in memory and assets are read from a bundled
// file system.
package handler

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"reportcard/internal/app"
	"reportcard/internal/assets"
	u "reportcard/internal/utils"
)

var (
	// AssetsFS holds the template and fonts. When nil, the directory named by
	// assets.dir (or REPORTCARD_ASSETS_DIR) is used.
	AssetsFS fs.FS

	once     sync.Once
	handler  http.HandlerFunc
	buildErr error
)

// Handler serves one request, building the app on first use.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, buildErr = build(serverlessConfig(), AssetsFS)
	})
	if buildErr != nil {
		u.Error("Serverless init failed", "error", buildErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    http.StatusInternalServerError,
				"message": "Failed to generate PDF.",
			},
		})
		return
	}
	handler(w, r)
}

// serverlessConfig reads CONFIG_PATH when set and falls back to defaults.
// Uploads are always kept in memory.
func serverlessConfig() u.Config {
	cfg := u.DefaultConfig()
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		loaded, err := u.ReadConfig(p)
		if err != nil {
			u.Warn("Ignoring unreadable config", "path", p, "error", err)
		} else {
			cfg = loaded
		}
	}
	if dir := os.Getenv("REPORTCARD_ASSETS_DIR"); dir != "" {
		cfg.Assets.Dir = dir
	}
	cfg.Uploads.Mode = "memory"
	cfg.Server.PublicDir = ""
	u.SetLogLevel(cfg.Logger.Level)
	return cfg
}

func build(cfg u.Config, fsys fs.FS) (http.HandlerFunc, error) {
	if fsys == nil {
		dir := cfg.Assets.Dir
		if dir == "" {
			dir = "."
		}
		fsys = os.DirFS(dir)
	}
	loader := assets.FSLoader{FS: fsys, Paths: assets.PathsFromConfig(cfg.Assets)}

	deps, err := app.NewDeps(cfg, loader, nil)
	if err != nil {
		return nil, err
	}
	return adaptor.FiberApp(app.SetupApp(cfg, deps)), nil
}
