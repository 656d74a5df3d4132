package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/hook"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

// Values of SHOVEL_CMD seen by hooks.
const (
	cmdInstall   = "install"
	cmdUpdate    = "update"
	cmdUninstall = "uninstall"
)

// scriptContext is what a lifecycle script is told about the package.
type scriptContext struct {
	name    string
	version string
	bucket  string
	arch    manifest.Arch
	dir     string
	cmd     string
}

func (e *Engine) persistDir(name string) string {
	return filepath.Join(e.opts.Paths.Persist, name)
}

func (e *Engine) appRoot(name string) string {
	return filepath.Join(e.opts.Paths.Apps, name)
}

func (e *Engine) currentLink(name string) string {
	return filepath.Join(e.appRoot(name), "current")
}

func (e *Engine) scriptEnv(sc scriptContext) map[string]string {
	return map[string]string{
		"SHOVEL_APP":         sc.name,
		"SHOVEL_VERSION":     sc.version,
		"SHOVEL_BUCKET":      sc.bucket,
		"SHOVEL_ARCH":        string(sc.arch),
		"SHOVEL_DIR":         sc.dir,
		"SHOVEL_PERSIST_DIR": e.persistDir(sc.name),
		"SHOVEL_CACHE_DIR":   e.opts.Paths.Cache,
		"SHOVEL_BUCKETS_DIR": e.opts.Paths.Buckets,
		"SHOVEL_MANIFEST":    filepath.Join(sc.dir, manifestFile),
		"SHOVEL_CMD":         sc.cmd,
		"SHOVEL_GLOBAL":      "false",
	}
}

// expander substitutes manifest variables in bin arguments, installer
// arguments and env values. dir is what $dir stands for.
func (e *Engine) expander(sc scriptContext, dir string) *strings.Replacer {
	return strings.NewReplacer(
		"$persist_dir", e.persistDir(sc.name),
		"$original_dir", sc.dir,
		"$version", sc.version,
		"$app", sc.name,
		"$dir", dir,
	)
}

// runScript runs one lifecycle script. Empty scripts are skipped.
func (e *Engine) runScript(ctx context.Context, sc scriptContext, hookName string, lines []string) error {
	script := strings.Join(lines, "\n")
	if strings.TrimSpace(script) == "" {
		return nil
	}
	res, err := e.opts.Hooks.Run(ctx, hook.Request{
		Name:   hookName,
		Script: script,
		Dir:    sc.dir,
		Env:    e.scriptEnv(sc),
	})
	e.opts.Logger.Debug("hook finished", "package", sc.name, "hook", hookName, "exit", res.ExitCode, "duration", res.Duration, "output", res.Output)
	return err
}

// runInstaller runs an installer or uninstaller declaration: its file with
// arguments, then its script.
func (e *Engine) runInstaller(ctx context.Context, sc scriptContext, hookName string, inst *manifest.Installer, removeFile bool) error {
	if inst == nil {
		return nil
	}
	if inst.File != "" {
		exe, err := fsutil.SafeJoin(sc.dir, inst.File)
		if err != nil {
			return err
		}
		if _, err := os.Stat(exe); err != nil {
			return fmt.Errorf(messages.InstallInstallerMissingFmt, inst.File, err)
		}
		expand := e.expander(sc, sc.dir)
		args := make([]string, 0, len(inst.Args))
		for _, arg := range inst.Args {
			args = append(args, expand.Replace(arg))
		}
		if err := e.runScript(ctx, sc, hookName, []string{e.opts.Hooks.CommandLine(exe, args)}); err != nil {
			return err
		}
		if removeFile && !inst.Keep {
			if err := os.Remove(exe); err != nil && !errors.Is(err, os.ErrNotExist) {
				e.opts.Logger.Warn("could not remove installer", "package", sc.name, "file", exe, "err", err)
			}
		}
	}
	return e.runScript(ctx, sc, hookName, inst.Script)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
