package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// StoreConfig defines the selection store connectivity.
type StoreConfig struct {
	RedisURL string
}

// AssetsConfig locates binder artwork. Base may be a local directory or an
// s3://bucket/prefix; both are optional and absence degrades to generated
// placeholders. EncPassword decrypts upload-tool objects.
type AssetsConfig struct {
	Base        string
	CacheDir    string
	EncPassword string
}

// RenderConfig bounds binder rendering.
type RenderConfig struct {
	MaxConcurrent int
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging       LoggingConfig
	Axiom         AxiomConfig
	Store         StoreConfig
	Assets        AssetsConfig
	Render        RenderConfig
	Server        ServerConfig
	CatalogueFile string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/rhymebinder.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_rhymebinder",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	cfg.Assets = AssetsConfig{
		Base:        getEnv("ASSETS_DIR", ""),
		CacheDir:    getEnv("ASSETS_CACHE_DIR", "cache/assets"),
		EncPassword: getEnv("ASSETS_ENC_PASSWORD", ""),
	}

	cfg.Render = RenderConfig{
		MaxConcurrent: parseInt(getEnv("RENDER_MAX_CONCURRENT", "2"), 2),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.CatalogueFile = getEnv("CATALOGUE_FILE", "")

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
