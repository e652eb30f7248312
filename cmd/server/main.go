package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/phishvars/api"
	"github.com/GoCodeAlone/phishvars/cache"
	"github.com/GoCodeAlone/phishvars/config"
	"github.com/GoCodeAlone/phishvars/metrics"
	"github.com/GoCodeAlone/phishvars/observability/tracing"
	"github.com/GoCodeAlone/phishvars/personalize"
	"github.com/GoCodeAlone/phishvars/store"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "Path to YAML configuration file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
	newKeyUser = flag.Int64("new-key-user", 0, "Create an API key for this user id, print it and exit")
	keyName    = flag.String("key-name", "cli", "Name of the key created by -new-key-user")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	logger, level, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *newKeyUser > 0 {
		err = createKey(ctx, cfg, logger, *newKeyUser, *keyName, os.Stdout)
	} else {
		err = run(ctx, cfg, logger, watchConfig(*configFile, level, logger))
	}
	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads path over the defaults (when set), applies the
// environment and validates the result.
func loadConfig(path string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the slog handler named by lc. The returned LevelVar
// changes the level of the running logger.
func newLogger(lc config.LogConfig, w io.Writer) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := lc.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), level, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), level, nil
}

// watchConfig returns a watcher that applies log level changes from path,
// or nil when no config file is used. Other settings need a restart.
func watchConfig(path string, level *slog.LevelVar, logger *slog.Logger) *config.Watcher {
	if path == "" {
		return nil
	}
	return config.NewWatcher(path, func(cfg *config.Config) {
		lvl, err := cfg.Log.SlogLevel()
		if err != nil {
			return
		}
		if lvl != level.Level() {
			level.Set(lvl)
			logger.Info("Log level changed", "level", lvl.String())
		}
	}, config.WithWatchLogger(logger), config.WithWatchEnv(os.LookupEnv))
}

// openStore opens the configured driver and, when Redis is enabled, wraps
// it with the summary cache.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		s = store.NewMemoryStore()
	case config.DriverSQLite:
		s, err = store.NewSQLiteStore(cfg.Store.Path)
	case config.DriverPostgres:
		s, err = store.NewPGStore(ctx, cfg.Store.Postgres)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Store opened", "driver", cfg.Store.Driver)

	if !cfg.Redis.Enabled {
		return s, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Redis.Config, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return cache.NewStore(s, rc), nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, watcher *config.Watcher) error {
	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if watcher != nil {
		if err := watcher.Start(); err != nil {
			logger.Warn("Config reloading disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	if cfg.Auth.AdminAPIKey != "" {
		key := &store.APIKey{UserID: cfg.Auth.AdminUserID, Name: "admin"}
		if err := s.EnsureAPIKey(ctx, key, cfg.Auth.AdminAPIKey); err != nil {
			return fmt.Errorf("seed admin api key: %w", err)
		}
		logger.Info("Admin API key ready", "user_id", key.UserID, "prefix", key.KeyPrefix)
	}

	var tp trace.TracerProvider
	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(sctx); err != nil {
				logger.Warn("Tracer shutdown failed", "error", err)
			}
		}()
		tp = provider.TracerProvider()
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics)
	}

	resolver, err := personalize.NewResolver(s, personalize.WithLogger(logger))
	if err != nil {
		return err
	}
	trusted, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		return err
	}
	router := api.NewRouter(s, resolver, api.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		ImportRate:     cfg.RateLimit.RequestsPerSecond,
		ImportBurst:    cfg.RateLimit.Burst,
		TrustedProxies: trusted,
		Logger:         logger,
		Metrics:        collector,
		TracerProvider: tp,
	})
	defer router.Stop()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// createKey issues a new API key for uid and prints the raw key to w.
func createKey(ctx context.Context, cfg *config.Config, logger *slog.Logger, uid int64, name string, w io.Writer) error {
	if cfg.Store.Driver == config.DriverMemory {
		return errors.New("keys created in the memory store are lost on exit")
	}
	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	raw, err := s.CreateAPIKey(ctx, &store.APIKey{UserID: uid, Name: name})
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	_, err = fmt.Fprintln(w, raw)
	return err
}
