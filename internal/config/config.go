// Package config loads the single configuration structure shared by the
// tiered cache and the live-score overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Environment variables shared with the cache daemon. They win over
// the config file.
const (
	envSocketPath = "LIVESCORE_CACHE_SOCK"
	envDBPath     = "LIVESCORE_CACHE_DB"
	envLogPath    = "LIVESCORE_LOG"
)

type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Durable DurableConfig `yaml:"durable"`
	Overlay OverlayConfig `yaml:"overlay"`
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
}

type CacheConfig struct {
	HotTTL       time.Duration `yaml:"hot_ttl"`
	DurableTTL   time.Duration `yaml:"durable_ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// UserAgent pins a single user agent. Empty rotates UserAgents.
	UserAgent string `yaml:"user_agent"`
	// UserAgents replaces the built-in rotation pool.
	UserAgents []string `yaml:"user_agents"`
}

type DurableConfig struct {
	// Backend is one of "bolt", "daemon", "redis" or "none".
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	Bucket        string        `yaml:"bucket"`
	Socket        string        `yaml:"socket"`
	MaxValueBytes int           `yaml:"max_value_bytes"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTimeout  time.Duration `yaml:"redis_timeout"`
}

type OverlayConfig struct {
	RefreshCooldown  time.Duration `yaml:"refresh_cooldown"`
	MatchPoll        time.Duration `yaml:"match_poll"`
	UseDurableTier   bool          `yaml:"use_durable_tier"`
	EvictAfterCycles int           `yaml:"evict_after_cycles"`
	FeedBaseURL      string        `yaml:"feed_base_url"`
	// Feeds overrides the feed URL of single categories, keyed by category.
	Feeds map[string]string `yaml:"feeds"`
	// APIKey is sent as X-API-KEY to the feed provider when set.
	APIKey string `yaml:"api_key"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Backends accepted by DurableConfig.Backend.
const (
	BackendBolt   = "bolt"
	BackendDaemon = "daemon"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	dir := defaultCacheDir()
	return &Config{
		Cache: CacheConfig{
			HotTTL:       60 * time.Second,
			DurableTTL:   5 * time.Minute,
			FetchTimeout: 8 * time.Second,
		},
		Durable: DurableConfig{
			Backend:       BackendBolt,
			Path:          filepath.Join(dir, "cache.bbolt"),
			Bucket:        "fetch",
			Socket:        filepath.Join(dir, "cache.sock"),
			MaxValueBytes: 5 << 20,
			RedisAddr:     "127.0.0.1:6379",
			RedisTimeout:  200 * time.Millisecond,
		},
		Overlay: OverlayConfig{
			RefreshCooldown: 30 * time.Second,
			MatchPoll:       5 * time.Second,
			FeedBaseURL:     "https://www.thesportsdb.com/api/v2/json/livescore",
			Feeds:           map[string]string{},
		},
		Log: LogConfig{
			Level: "info",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8089",
		},
	}
}

// Load reads a config file on top of Default. If filePath is empty it looks
// for a file named "config" in the working directory and silently falls back
// to defaults when none exists.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIVESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if len(filePath) > 0 || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Default()
	bindDefaults(v, cfg)

	decoderOpt := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Durable.Path = expandHome(cfg.Durable.Path)
	cfg.Durable.Socket = expandHome(cfg.Durable.Socket)
	cfg.Log.Path = expandHome(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every leaf key so AutomaticEnv can override keys
// that are absent from the file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("cache.hot_ttl", cfg.Cache.HotTTL)
	v.SetDefault("cache.durable_ttl", cfg.Cache.DurableTTL)
	v.SetDefault("cache.fetch_timeout", cfg.Cache.FetchTimeout)
	v.SetDefault("cache.user_agent", cfg.Cache.UserAgent)
	v.SetDefault("cache.user_agents", cfg.Cache.UserAgents)
	v.SetDefault("durable.backend", cfg.Durable.Backend)
	v.SetDefault("durable.path", cfg.Durable.Path)
	v.SetDefault("durable.bucket", cfg.Durable.Bucket)
	v.SetDefault("durable.socket", cfg.Durable.Socket)
	v.SetDefault("durable.max_value_bytes", cfg.Durable.MaxValueBytes)
	v.SetDefault("durable.redis_addr", cfg.Durable.RedisAddr)
	v.SetDefault("durable.redis_db", cfg.Durable.RedisDB)
	v.SetDefault("durable.redis_timeout", cfg.Durable.RedisTimeout)
	v.SetDefault("overlay.refresh_cooldown", cfg.Overlay.RefreshCooldown)
	v.SetDefault("overlay.match_poll", cfg.Overlay.MatchPoll)
	v.SetDefault("overlay.use_durable_tier", cfg.Overlay.UseDurableTier)
	v.SetDefault("overlay.evict_after_cycles", cfg.Overlay.EvictAfterCycles)
	v.SetDefault("overlay.feed_base_url", cfg.Overlay.FeedBaseURL)
	v.SetDefault("overlay.api_key", cfg.Overlay.APIKey)
	v.SetDefault("log.path", cfg.Log.Path)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
}

func applyEnvOverrides(cfg *Config) {
	if s := os.Getenv(envSocketPath); s != "" {
		cfg.Durable.Socket = s
	}
	if s := os.Getenv(envDBPath); s != "" {
		cfg.Durable.Path = s
	}
	if s := os.Getenv(envLogPath); s != "" {
		cfg.Log.Path = s
	}
}

// Validate checks durations and the tier invariant: the hot tier must expire
// no later than the durable tier.
func (c *Config) Validate() error {
	if c.Cache.HotTTL <= 0 || c.Cache.DurableTTL <= 0 || c.Cache.FetchTimeout <= 0 {
		return errors.New("cache ttl and timeout values must be positive")
	}
	if c.Cache.HotTTL > c.Cache.DurableTTL {
		return fmt.Errorf("cache.hot_ttl (%s) must not exceed cache.durable_ttl (%s)", c.Cache.HotTTL, c.Cache.DurableTTL)
	}
	if c.Overlay.RefreshCooldown <= 0 || c.Overlay.MatchPoll <= 0 {
		return errors.New("overlay intervals must be positive")
	}
	if c.Overlay.EvictAfterCycles < 0 {
		return errors.New("overlay.evict_after_cycles must not be negative")
	}
	switch c.Durable.Backend {
	case BackendBolt, BackendDaemon, BackendRedis, BackendNone:
	default:
		return fmt.Errorf("unknown durable backend %q", c.Durable.Backend)
	}
	return nil
}

func defaultCacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "livescore-mcp")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		if home == "" {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
