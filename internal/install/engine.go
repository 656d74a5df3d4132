// Package install drives packages through the install, upgrade and
// uninstall state machine: fetch and verify artifacts, extract them into a
// private directory, link shims and the activation environment, run
// lifecycle hooks, and persist what each install owns.
package install

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/conn-castle/shovel/internal/config"
	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/hook"
	"github.com/conn-castle/shovel/internal/manifest"
)

// Fetcher resolves an artifact to a verified local file.
type Fetcher interface {
	Fetch(ctx context.Context, url string, h manifest.Hash) (fetch.Result, error)
	Cache() *fetch.Cache
}

// HookRunner runs lifecycle scripts.
type HookRunner interface {
	Run(ctx context.Context, req hook.Request) (hook.Result, error)
	CommandLine(exe string, args []string) string
}

// Options configures an Engine.
type Options struct {
	Paths   config.Paths
	Fetcher Fetcher
	Hooks   HookRunner
	// Records defaults to a store under Paths.Records.
	Records *RecordStore
	// Arches lists acceptable architectures, most preferred first. Defaults
	// to the native architecture and those it can run.
	Arches []manifest.Arch
	// Workers bounds concurrent package pipelines.
	Workers  int
	Retry    fetch.Policy
	Limits   Limits
	Observer Observer
	Logger   *slog.Logger
	System   System
	// GOOS selects the shim flavor. Defaults to runtime.GOOS.
	GOOS  string
	Now   func() time.Time
	NewID func() string
}

// Engine installs and uninstalls packages.
type Engine struct {
	opts       Options
	records    *RecordStore
	activation *activation
}

// New returns an engine.
func New(opts Options) *Engine {
	if opts.System == nil {
		opts.System = RealSystem{}
	}
	if opts.Records == nil {
		opts.Records = NewRecordStore(opts.Paths.Records, opts.System)
	}
	if len(opts.Arches) == 0 {
		opts.Arches = manifest.CompatibleArches(manifest.NativeArch())
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{
		opts:    opts,
		records: opts.Records,
		activation: &activation{
			envPath:    opts.Paths.ActivationEnv,
			scriptPath: opts.Paths.ActivationScript,
			sys:        opts.System,
		},
	}
}

// Records returns the engine's record store.
func (e *Engine) Records() *RecordStore {
	return e.records
}

// List returns every installed package record.
func (e *Engine) List() ([]Record, error) {
	return e.records.List()
}
