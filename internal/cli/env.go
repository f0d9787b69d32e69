package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/poe/internal/clock"
	"github.com/roach88/poe/internal/config"
	"github.com/roach88/poe/internal/dsstore"
	"github.com/roach88/poe/internal/identity"
	"github.com/roach88/poe/internal/memstore"
	"github.com/roach88/poe/internal/metrics"
	"github.com/roach88/poe/internal/notify"
	"github.com/roach88/poe/internal/redisstore"
	"github.com/roach88/poe/internal/registry"
	"github.com/roach88/poe/internal/store"
)

// File and directory names under the data dir.
const (
	sqliteFile = "poe.db"
	leveldbDir = "claims"
)

// Backend is a claim store that also persists the chain height.
type Backend interface {
	registry.Store
	clock.HeightStore
	io.Closer
}

type memBackend struct {
	*memstore.Store
}

func (memBackend) Close() error { return nil }

// env is everything a command needs to reach the registry.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  Backend
	journal  *store.Store // nil unless the backend is sqlite
	chain    *clock.Chain
	registry *registry.Registry
	metrics  *prometheus.Registry
}

// loadConfig reads --config (or the defaults) and applies --data-dir.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	return cfg, nil
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openEnv loads config, opens the configured backend and builds a registry
// over it. The caller must Close the env.
func (o *RootOptions) openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := o.logger(cmd)

	backend, journal, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s backend", cfg.Backend), err)
	}

	chain, err := clock.Open(ctx, backend)
	if err != nil {
		_ = backend.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load chain height", err)
	}

	sinks := notify.Fanout{notify.NewLogger(logger)}
	if journal != nil {
		sinks = append(sinks, journal.Journal(logger))
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	resolver := identity.Cached(identity.NewVerifier(cfg.Audience, cfg.ClockSkew), cfg.ResolverCache)

	reg := registry.New(backend, chain, resolver, m.Sink(sinks),
		registry.WithMaxClaimLength(cfg.MaxClaimLength),
		registry.WithLogger(logger),
		registry.WithObserver(m),
	)

	return &env{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		journal:  journal,
		chain:    chain,
		registry: reg,
		metrics:  promReg,
	}, nil
}

func (e *env) Close() error {
	return e.backend.Close()
}

// openBackend opens the store named by cfg.Backend. The returned journal is
// non-nil only for sqlite.
func openBackend(ctx context.Context, cfg *config.Config) (Backend, *store.Store, error) {
	if cfg.Backend == config.BackendMemory {
		return memBackend{memstore.New()}, nil, nil
	}
	if cfg.Backend == config.BackendRedis {
		s, err := redisstore.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}

	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := store.Open(filepath.Join(dir, sqliteFile))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendLevelDB:
		s, err := dsstore.OpenLevelDB(filepath.Join(dir, leveldbDir))
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// loadKey reads the signing key from --key or EnvPrivateKey.
func loadKey(flagValue string) (*identity.Keypair, error) {
	raw := flagValue
	if raw == "" {
		raw = os.Getenv(EnvPrivateKey)
	}
	if raw == "" {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("no signing key: pass --key or set %s", EnvPrivateKey))
	}
	kp, err := identity.Parse(raw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid signing key", err)
	}
	return kp, nil
}
