// Package config loads service configuration from KIN1D_* environment
// variables. Invalid optional values are logged and replaced by defaults;
// only an unusable auth setup is fatal.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/star/kinematics1d/internal/auth"
	"github.com/star/kinematics1d/internal/cache"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/live"
	"github.com/star/kinematics1d/internal/solver"
	"github.com/star/kinematics1d/internal/stream"
)

// DefaultAppURL is advertised by the about endpoint when KIN1D_APP_URL is unset.
const DefaultAppURL = "http://localhost:8080"

// HistoryConfig selects the resolution history database.
type HistoryConfig struct {
	Path       string // SQLite file; empty disables history
	MaxRecords int    // Rows kept, newest first (default: 10000)
}

// Config is the complete, immutable service configuration.
type Config struct {
	HTTPAddr   string
	Debug      bool
	OnCloud    bool
	AppURL     string
	TrustProxy bool

	Auth    auth.Config
	Solver  solver.Config
	Cache   cache.Config
	History HistoryConfig
	Stream  stream.Config
	Live    live.Config
}

// Load reads the configuration through getenv, normally os.Getenv.
func Load(getenv func(string) string, logger *slog.Logger) (Config, error) {
	cfg := Config{
		HTTPAddr: getenv("KIN1D_HTTP_ADDR"),
		AppURL:   getenv("KIN1D_APP_URL"),
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	cfg.Debug = flag(getenv, logger, "KIN1D_DEBUG", false)
	cfg.OnCloud = flag(getenv, logger, "KIN1D_ON_CLOUD", false)
	// Hosted deployments sit behind the platform's reverse proxy.
	cfg.TrustProxy = flag(getenv, logger, "KIN1D_TRUST_PROXY", cfg.OnCloud)

	authCfg, err := loadAuthConfig(getenv, logger)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = authCfg

	cfg.Solver = loadSolverConfig(getenv, logger)
	cfg.Cache = loadCacheConfig(getenv, logger)
	cfg.History = loadHistoryConfig(getenv, logger)
	cfg.Stream = loadStreamConfig(getenv, logger, cfg.TrustProxy)
	cfg.Live = live.Config{
		TrustProxy:       cfg.TrustProxy,
		AllowAnyOrigin:   cfg.Debug,
		MaxSessionsPerIP: positiveInt(getenv, logger, "KIN1D_LIVE_MAX_SESSIONS", 4),
	}

	logger.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"debug", cfg.Debug,
		"on_cloud", cfg.OnCloud,
		"trust_proxy", cfg.TrustProxy,
		"app_url", cfg.AppURL,
	)
	return cfg, nil
}

func loadAuthConfig(getenv func(string) string, logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := getenv("KIN1D_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("KIN1D_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = getenv("KIN1D_AUTH_TOKEN")
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("KIN1D_AUTH_TOKEN: %w", err)
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadSolverConfig(getenv func(string) string, logger *slog.Logger) solver.Config {
	cfg := solver.Config{
		Workers:          positiveInt(getenv, logger, "KIN1D_SOLVER_WORKERS", runtime.NumCPU()),
		DefaultPrecision: kinematics.DefaultPrecision,
		MaxBatch:         positiveInt(getenv, logger, "KIN1D_SOLVER_MAX_BATCH", 1000),
	}

	if v := getenv("KIN1D_PRECISION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 15 {
			logger.Warn("invalid KIN1D_PRECISION value, using default", "value", v, "default", cfg.DefaultPrecision)
		} else {
			cfg.DefaultPrecision = n
		}
	}

	logger.Info("solver config",
		"workers", cfg.Workers,
		"default_precision", cfg.DefaultPrecision,
		"max_batch", cfg.MaxBatch,
	)
	return cfg
}

func loadCacheConfig(getenv func(string) string, logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		TTL:           10 * time.Minute,
		MaxEntries:    positiveInt(getenv, logger, "KIN1D_CACHE_MAX_ENTRIES", 10000),
		SweepInterval: 30 * time.Second,
	}

	// A TTL of 0 keeps entries until they are pushed out by MaxEntries.
	if v := getenv("KIN1D_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid KIN1D_CACHE_TTL value, using default", "value", v, "default", 600)
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func loadHistoryConfig(getenv func(string) string, logger *slog.Logger) HistoryConfig {
	cfg := HistoryConfig{
		Path:       getenv("KIN1D_HISTORY_DB"),
		MaxRecords: positiveInt(getenv, logger, "KIN1D_HISTORY_MAX_RECORDS", 10000),
	}

	logger.Info("history config",
		"enabled", cfg.Path != "",
		"path", cfg.Path,
		"max_records", cfg.MaxRecords,
	)
	return cfg
}

func loadStreamConfig(getenv func(string) string, logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: positiveInt(getenv, logger, "KIN1D_STREAM_MAX_CONCURRENT", 10),
		MaxConcurrent:      1000,
		KeepaliveInterval:  time.Duration(positiveInt(getenv, logger, "KIN1D_STREAM_KEEPALIVE_INTERVAL", 30)) * time.Second,
		MaxSamples:         positiveInt(getenv, logger, "KIN1D_STREAM_MAX_SAMPLES", 10000),
		TrustProxy:         trustProxy,
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"max_samples", cfg.MaxSamples,
	)
	return cfg
}

// positiveInt reads key as an integer >= 1, warning and returning def when
// the value is missing or invalid.
func positiveInt(getenv func(string) string, logger *slog.Logger, key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

// flag reads key as a boolean; 1/0 and true/false are both accepted.
func flag(getenv func(string) string, logger *slog.Logger, key string, def bool) bool {
	v := getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}
