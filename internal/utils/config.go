package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PostgresConfig describes the connection to the API token store.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AssetsConfig points at the template document and the three fonts.
// Relative paths are resolved against Dir.
type AssetsConfig struct {
	Dir        string `yaml:"dir"`
	Template   string `yaml:"template"`
	HindiFont  string `yaml:"hindi_font"`
	BoldFont   string `yaml:"bold_font"`
	MediumFont string `yaml:"medium_font"`
}

// TranslateConfig configures the name translation collaborator.
type TranslateConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	SourceLang string        `yaml:"source_lang"`
	TargetLang string        `yaml:"target_lang"`
	Timeout    time.Duration `yaml:"timeout"`
	Disabled   bool          `yaml:"disabled"`
	// Static, when set, replaces the HTTP service with a fixed name table.
	Static map[string]string `yaml:"static"`
}

// UploadsConfig selects where uploaded photos live while a request is served.
type UploadsConfig struct {
	Mode string `yaml:"mode"` // "disk" or "memory"
	Dir  string `yaml:"dir"`
}

// Config is the full service configuration as read from YAML.
type Config struct {
	Server struct {
		Host      string `yaml:"host"`
		Port      string `yaml:"port"`
		Prefork   bool   `yaml:"prefork"`
		PublicDir string `yaml:"public_dir"`
	} `yaml:"server"`

	Limits struct {
		MaxUploadBytes int `yaml:"max_upload_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost               string        `yaml:"redis_host"`
		RateLimitDB             int           `yaml:"redis_rate_db"`
		TranslationDB           int           `yaml:"redis_translation_db"`
		TranslationCacheEnabled bool          `yaml:"translation_cache_enabled"`
		TranslationCacheTTL     time.Duration `yaml:"translation_cache_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Postgres PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Assets    AssetsConfig    `yaml:"assets"`
	Translate TranslateConfig `yaml:"translate"`
	Uploads   UploadsConfig   `yaml:"uploads"`
}

// AppConfig holds the most recently loaded configuration.
var AppConfig Config

// DefaultConfig returns the configuration used when a value is not set in
// the YAML file.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":3000"
	cfg.Limits.MaxUploadBytes = 5 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 20 * 1024 * 1024
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7
	cfg.Cache.TranslationCacheTTL = 24 * time.Hour
	cfg.RateLimiter.Interval = time.Minute
	cfg.Assets.Template = "template.pdf"
	cfg.Assets.HindiFont = "fonts/Mangal-Regular.ttf"
	cfg.Assets.BoldFont = "fonts/GothamBold.ttf"
	cfg.Assets.MediumFont = "fonts/GothamMedium.ttf"
	cfg.Translate.Endpoint = "https://translate.googleapis.com/translate_a/single"
	cfg.Translate.SourceLang = "en"
	cfg.Translate.TargetLang = "hi"
	cfg.Translate.Timeout = 3 * time.Second
	cfg.Uploads.Mode = "disk"
	cfg.Uploads.Dir = "uploads"
	return cfg
}

// ConfigPath returns the YAML path taken from CONFIG_PATH, or config.yaml.
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// LoadConfig reads the configuration from ConfigPath and stores it in
// AppConfig. It panics if the file cannot be read or is invalid.
func LoadConfig() Config {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads, defaults and validates the YAML file at path.
func LoadFrom(path string) Config {
	cfg, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}
	AppConfig = cfg
	return cfg
}

// ReadConfig is the non-panicking variant of LoadFrom. It does not touch
// AppConfig.
func ReadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if dir := os.Getenv("REPORTCARD_ASSETS_DIR"); dir != "" {
		cfg.Assets.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// GetConfig returns the active configuration.
func GetConfig() Config {
	return AppConfig
}

// Validate checks values that would otherwise fail later at request time.
func (c Config) Validate() error {
	if c.Limits.MaxUploadBytes <= 0 {
		return fmt.Errorf("limits.max_upload_bytes must be positive")
	}
	if c.Limits.MaxPDFBytes <= 0 {
		return fmt.Errorf("limits.max_pdf_bytes must be positive")
	}
	if c.RateLimiter.Interval <= 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if c.Translate.Timeout <= 0 {
		return fmt.Errorf("translate.timeout must be positive")
	}
	switch c.Uploads.Mode {
	case "disk":
		if c.Uploads.Dir == "" {
			return fmt.Errorf("uploads.dir is required in disk mode")
		}
	case "memory":
	default:
		return fmt.Errorf("uploads.mode must be 'disk' or 'memory', got %q", c.Uploads.Mode)
	}
	if c.Assets.Template == "" || c.Assets.HindiFont == "" || c.Assets.BoldFont == "" || c.Assets.MediumFont == "" {
		return fmt.Errorf("assets: template and all three fonts are required")
	}
	return nil
}

// AssetPath resolves an asset file name against Assets.Dir.
func (c Config) AssetPath(name string) string {
	if c.Assets.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Assets.Dir, name)
}
