package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/config"
	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/hook"
	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/metrics"
)

const maxRetryBackoff = 30 * time.Second

var (
	configSystem config.System = config.RealSystem{}
	newTransport               = func(userAgent string) fetch.Transport { return fetch.NewHTTPTransport(userAgent) }
)

// app is the set of components one command invocation works with.
type app struct {
	cfg     *config.Config
	paths   config.Paths
	logger  *slog.Logger
	metrics *metrics.Metrics
	buckets *bucket.Store
	fetcher *fetch.Fetcher
	engine  *install.Engine
	out     io.Writer
	errOut  io.Writer

	metricsFile string
}

// appOverrides are per-command flags that take precedence over config.
type appOverrides struct {
	arch    string
	workers int
}

// rootSystem answers SHOVEL_ROOT with the --root flag when it is set, so the
// flag goes through the same path resolution as the environment variable.
type rootSystem struct {
	config.System
	root string
}

func (s rootSystem) LookupEnv(key string) (string, bool) {
	if key == config.EnvRoot && strings.TrimSpace(s.root) != "" {
		return s.root, true
	}
	return s.System.LookupEnv(key)
}

// open loads config and wires the bucket store, fetcher, hook runner, and
// install engine for cmd.
func (o *rootOptions) open(cmd *cobra.Command, overrides appOverrides) (*app, error) {
	sys := rootSystem{System: configSystem, root: o.root}
	cfg, err := config.LoadWithSystem(sys, o.configPath)
	if err != nil {
		return nil, err
	}
	if overrides.arch != "" {
		cfg.Architecture = overrides.arch
	}
	if overrides.workers > 0 {
		cfg.Install.Workers = overrides.workers
	}
	var arches []manifest.Arch
	if cfg.Architecture != "" {
		arch, err := manifest.ParseArch(cfg.Architecture)
		if err != nil {
			return nil, err
		}
		arches = []manifest.Arch{arch}
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	logger := o.newLogger(errOut)
	paths := cfg.Paths()
	m := metrics.New()

	fetcher := fetch.New(fetch.Options{
		Transport: newTransport(cfg.Fetch.UserAgent),
		Cache:     fetch.NewCache(paths.Cache),
		MaxBytes:  cfg.Fetch.MaxBytes,
		Timeout:   cfg.Fetch.Timeout.Std(),
		Offline:   config.NoNetwork(sys),
		Progress:  errOut,
		Recorder:  m,
		Logger:    logger,
	})
	hooks := hook.NewRunner(hook.Options{
		Interpreter: cfg.Hooks.Interpreter,
		Timeout:     cfg.Hooks.Timeout.Std(),
		Recorder:    m,
		Logger:      logger,
	})
	engine := install.New(install.Options{
		Paths:   paths,
		Fetcher: fetcher,
		Hooks:   hooks,
		Arches:  arches,
		Workers: cfg.Install.Workers,
		Retry: fetch.Policy{
			Retries:    cfg.RetryCount(),
			Backoff:    cfg.Install.RetryBackoff.Std(),
			MaxBackoff: maxRetryBackoff,
		},
		Observer: install.Observers{newProgressPrinter(errOut), m},
		Logger:   logger,
	})
	buckets := bucket.NewStore(bucket.Options{
		Dir:          paths.Buckets,
		RegistryPath: paths.BucketRegistry,
		Usage:        engine.Records(),
		Logger:       logger,
	})

	metricsFile := o.metricsFile
	if metricsFile == "" {
		metricsFile = paths.Metrics
	}
	return &app{
		cfg:         cfg,
		paths:       paths,
		logger:      logger,
		metrics:     m,
		buckets:     buckets,
		fetcher:     fetcher,
		engine:      engine,
		out:         out,
		errOut:      errOut,
		metricsFile: metricsFile,
	}, nil
}

// flushMetrics exports the run's metrics. A failed export is logged and
// never fails the command.
func (a *app) flushMetrics() {
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		a.logger.Warn("write metrics failed", "path", a.metricsFile, "err", err)
	}
}
