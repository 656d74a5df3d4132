// Package hook runs manifest-declared scripts in an external interpreter.
// Output is captured and handed back verbatim; it is never interpreted.
package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/conn-castle/shovel/internal/config"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/telemetry"
)

const (
	defaultMaxOutput = 64 << 10
	waitDelay        = 2 * time.Second
)

// baseEnvKeys are inherited from the calling process. Everything else a script
// sees comes from Request.Env.
var baseEnvKeys = []string{
	"PATH", "HOME", "USER", "LANG", "TMPDIR", "TERM",
	"USERPROFILE", "SYSTEMROOT", "SYSTEMDRIVE", "COMSPEC", "PATHEXT", "TEMP", "TMP", "APPDATA", "LOCALAPPDATA", "WINDIR",
}

var lookupEnv = os.LookupEnv

// Recorder observes finished hook runs.
type Recorder interface {
	HookFinished(name string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) HookFinished(string, time.Duration, error) {}

// Options configures a Runner.
type Options struct {
	// Interpreter is the argv prefix; the script text is appended as the
	// final argument. Empty means the platform default.
	Interpreter []string
	// Timeout bounds each run. Zero means only the caller's context applies.
	Timeout time.Duration
	// MaxOutput caps captured output in bytes.
	MaxOutput int
	Recorder  Recorder
	Logger    *slog.Logger
}

// Request is one script to run.
type Request struct {
	Name   string
	Script string
	Dir    string
	Env    map[string]string
}

// Result is a finished run.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner executes hook scripts.
type Runner struct {
	opts Options
}

// NewRunner returns a runner.
func NewRunner(opts Options) *Runner {
	if len(opts.Interpreter) == 0 {
		opts.Interpreter = config.DefaultInterpreter(runtime.GOOS)
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = defaultMaxOutput
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts}
}

// Run executes req.Script and waits for it. A blank script succeeds without
// starting a process. The script runs in its own process group, which is
// killed when the timeout expires or ctx is canceled.
func (r *Runner) Run(ctx context.Context, req Request) (res Result, err error) {
	if strings.TrimSpace(req.Script) == "" {
		return Result{}, nil
	}
	if r.opts.Interpreter[0] == "" {
		return Result{}, errors.New(messages.HookInterpreterRequired)
	}
	ctx, span := telemetry.Start(ctx, "hook", telemetry.Hook(req.Name))
	defer func() { telemetry.End(span, err) }()

	runCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	argv := append(slices.Clone(r.opts.Interpreter), req.Script)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = environ(req.Env)
	out := newBoundedBuffer(r.opts.MaxOutput)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	r.opts.Logger.Debug("running hook", "hook", req.Name, "dir", req.Dir)
	start := time.Now()
	runErr := cmd.Run()
	res = Result{ExitCode: exitCode(cmd), Output: out.String(), Duration: time.Since(start)}
	defer func() { r.opts.Recorder.HookFinished(req.Name, res.Duration, err) }()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return res, fmt.Errorf(messages.HookCanceledFmt, req.Name, ctx.Err())
		}
		return res, &Error{Kind: KindTimeout, Hook: req.Name, ExitCode: res.ExitCode, Output: res.Output, Timeout: r.opts.Timeout, Err: ctxErr}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, &Error{Kind: KindStart, Hook: req.Name, ExitCode: -1, Output: res.Output, Err: runErr}
		}
	}
	if res.ExitCode != 0 {
		return res, &Error{Kind: KindFailed, Hook: req.Name, ExitCode: res.ExitCode, Output: res.Output, Err: runErr}
	}
	return res, nil
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// environ returns the inherited base environment overlaid with extra, sorted
// by key.
func environ(extra map[string]string) []string {
	merged := make(map[string]string, len(baseEnvKeys)+len(extra))
	for _, key := range baseEnvKeys {
		if value, ok := lookupEnv(key); ok {
			merged[key] = value
		}
	}
	for key, value := range extra {
		merged[key] = value
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+merged[key])
	}
	return env
}
