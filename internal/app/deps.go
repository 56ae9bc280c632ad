package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"reportcard/internal/assets"
	"reportcard/internal/reportcard"
	"reportcard/internal/translate"
	"reportcard/internal/uploads"
	u "reportcard/internal/utils"
)

// NewTranslator builds the translator configured in cfg. The Redis cache is
// used only when enabled and rdb is set. It returns nil when translation is
// disabled.
func NewTranslator(cfg u.Config, rdb *redis.Client) reportcard.Translator {
	if cfg.Translate.Disabled {
		return nil
	}
	if len(cfg.Translate.Static) > 0 {
		return translate.Static(cfg.Translate.Static)
	}
	var tr reportcard.Translator = translate.NewClient(cfg.Translate.Endpoint, cfg.Translate.Timeout, nil)
	if rdb != nil && cfg.Cache.TranslationCacheEnabled {
		tr = translate.NewCached(tr, rdb, cfg.Cache.TranslationCacheTTL)
	}
	return tr
}

// NewDeps loads the assets once and builds the renderer and upload store
// shared by every request.
func NewDeps(cfg u.Config, loader assets.Loader, rdb *redis.Client) (Deps, error) {
	a, err := loader.Load()
	if err != nil {
		return Deps{}, err
	}
	store, err := uploads.NewStore(cfg.Uploads, int64(cfg.Limits.MaxUploadBytes))
	if err != nil {
		return Deps{}, fmt.Errorf("create upload store: %w", err)
	}
	r := reportcard.New(a, NewTranslator(cfg, rdb), reportcard.Options{
		SourceLang:       cfg.Translate.SourceLang,
		TargetLang:       cfg.Translate.TargetLang,
		TranslateTimeout: cfg.Translate.Timeout,
	})
	return Deps{Renderer: r, Store: store}, nil
}
