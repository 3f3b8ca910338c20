package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/leonardcser/livescore-mcp/internal/cache"
	"github.com/leonardcser/livescore-mcp/internal/config"
	"github.com/leonardcser/livescore-mcp/internal/livescore"
	"github.com/leonardcser/livescore-mcp/internal/logger"
	"github.com/leonardcser/livescore-mcp/internal/metrics"
	web "github.com/leonardcser/livescore-mcp/internal/web"
)

// app is everything a serving command needs, built once from the config.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	reg     *prometheus.Registry
	cache   *cache.Tiered
	overlay *livescore.Overlay
	closers []func() error
}

func setup(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("fail to load config, %w", err)
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("fail to init logger, %w", err)
	}
	a := &app{cfg: cfg, log: logger.L(), reg: metrics.NewRegistry()}
	a.closers = append(a.closers, logger.Close)
	logger.Infof("Starting Live Score MCP %s", version)

	m := metrics.New(a.reg)

	durable, closeDurable, err := openDurable(cfg.Durable)
	if err != nil {
		// The durable tier is best-effort; run memory-only rather than fail.
		logger.Warnf("Durable tier %q unavailable, running memory-only: %v", cfg.Durable.Backend, err)
		durable = nil
	} else if closeDurable != nil {
		a.closers = append([]func() error{closeDurable}, a.closers...)
	}

	fetcher := web.NewFetcher(web.Options{
		Timeout:    cfg.Cache.FetchTimeout,
		UserAgent:  cfg.Cache.UserAgent,
		UserAgents: cfg.Cache.UserAgents,
	})
	a.cache, err = cache.New(fetcher, durable, cache.TieredOptions{
		HotTTL:       cfg.Cache.HotTTL,
		DurableTTL:   cfg.Cache.DurableTTL,
		FetchTimeout: cfg.Cache.FetchTimeout,
		Logger:       a.log.Named("cache"),
		Metrics:      m,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Infof("Initialized tiered cache (hot %s, durable %s, backend %s)", cfg.Cache.HotTTL, cfg.Cache.DurableTTL, cfg.Durable.Backend)

	for name := range cfg.Overlay.Feeds {
		if _, err := livescore.ParseCategory(name); err != nil {
			logger.Warnf("Ignoring feed override: %v", err)
		}
	}
	a.overlay = livescore.New(a.cache, livescore.NewStore(), livescore.Options{
		Cooldown:         cfg.Overlay.RefreshCooldown,
		MatchPoll:        cfg.Overlay.MatchPoll,
		UseDurable:       cfg.Overlay.UseDurableTier,
		EvictAfterCycles: cfg.Overlay.EvictAfterCycles,
		FeedURL:          livescore.FeedURLs(cfg.Overlay.FeedBaseURL, cfg.Overlay.Feeds),
		APIKey:           cfg.Overlay.APIKey,
		Logger:           a.log.Named("overlay"),
		Metrics:          m,
	})
	return a, nil
}

// Close releases the durable tier, then the log file.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}
}

// openDurable opens the configured durable backend. The returned closer may
// be nil.
func openDurable(cfg config.DurableConfig) (cache.Durable, func() error, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil, nil
	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, err
		}
		s, err := cache.Open(cfg.Path, cache.Options{Bucket: cfg.Bucket, MaxValueBytes: cfg.MaxValueBytes})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendDaemon:
		client, err := connectDaemon(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.BackendRedis:
		c := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		s, err := cache.NewRedisStore(cache.RedisStoreOpts{
			Client:        c,
			ClientCloser:  c,
			ClientTimeout: cfg.RedisTimeout,
		})
		if err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown durable backend %q", cfg.Backend)
	}
}

// connectDaemon connects to the cache daemon, starting it when the socket
// does not answer.
func connectDaemon(cfg config.DurableConfig) (*cache.Client, error) {
	logger.Infof("Attempting to connect to cache daemon at %s", cfg.Socket)
	err := probe(cfg.Socket)
	if err == nil {
		return cache.NewClient(cfg.Socket), nil
	}
	logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
	if startErr := startCacheDaemon(cfg); startErr != nil {
		return nil, fmt.Errorf("start cache daemon: %w", startErr)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err = probe(cfg.Socket); err == nil {
			logger.Infof("Successfully connected to cache daemon")
			return cache.NewClient(cfg.Socket), nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("cache daemon did not come up: %w", err)
}

func probe(sock string) error {
	conn, err := net.DialTimeout("unix", sock, 200*time.Millisecond)
	if err != nil {
		return err
	}
	return conn.Close()
}

const daemonBinary = "livescore-mcp-cache"

func startCacheDaemon(cfg config.DurableConfig) error {
	// The daemon reads the same env overrides as the server.
	env := append(os.Environ(), "LIVESCORE_CACHE_SOCK="+cfg.Socket, "LIVESCORE_CACHE_DB="+cfg.Path)

	// 1) Try cache binary next to this server executable
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), daemonBinary)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return spawn(sibling, env)
		}
	}
	// 2) Try PATH binary
	if path, err := exec.LookPath(daemonBinary); err == nil {
		return spawn(path, env)
	}
	// 3) Try local binary in current working directory
	if _, err := os.Stat("./" + daemonBinary); err == nil {
		return spawn("./"+daemonBinary, env)
	}
	return exec.ErrNotFound
}

func spawn(path string, env []string) error {
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = env
	return cmd.Start()
}
