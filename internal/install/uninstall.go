package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/telemetry"
)

// UninstallOptions tunes Uninstall.
type UninstallOptions struct {
	// Purge also removes the package's persist directory.
	Purge bool
	// Force continues when the manifest snapshot is missing or unreadable,
	// skipping uninstall hooks.
	Force bool
}

// Uninstall runs the package's uninstall hooks and removes every side effect
// its record owns. If any removal fails the record is rewritten to list what
// remains, so a later Uninstall can finish the job.
func (e *Engine) Uninstall(ctx context.Context, name string, opts UninstallOptions) (err error) {
	ctx, span := telemetry.Start(ctx, "uninstall", telemetry.Package(name))
	defer func() { telemetry.End(span, err) }()

	unlock, err := e.records.Lock(ctx, name)
	if err != nil {
		return newError(KindRecord, name, StateInstalled, err)
	}
	defer unlock()

	rec, ok, err := e.records.Get(name)
	if err != nil {
		return newError(KindRecord, name, StateInstalled, err)
	}
	if !ok {
		return newError(KindNotInstalled, name, StateInstalled, errors.New(name))
	}

	m := newMachine(name, rec.Version, StateInstalled, e.opts.Observer, e.opts.Now)
	m.to(StateUninstalling)
	defer func() {
		if err != nil {
			m.fail(err)
			e.opts.Logger.Error("uninstall failed", "package", name, "err", err)
		}
	}()

	target, terr := e.recordedTarget(rec)
	if terr != nil {
		if !opts.Force {
			return newError(KindRecord, name, StateUninstalling, terr)
		}
		e.opts.Logger.Warn("skipping uninstall hooks", "package", name, "err", terr)
	} else {
		sc := scriptContext{
			name:    name,
			version: rec.Version,
			bucket:  rec.Bucket,
			arch:    rec.Arch,
			dir:     rec.Dir,
			cmd:     cmdUninstall,
		}
		if err := e.runScript(ctx, sc, "pre_uninstall", target.PreUninstall); err != nil {
			return newError(KindHook, name, StateUninstalling, err)
		}
		if err := e.runInstaller(ctx, sc, "uninstaller", target.Uninstaller, false); err != nil {
			return newError(KindHook, name, StateUninstalling, err)
		}
		// The version directory stays until post_uninstall has run.
		remaining, err := e.releaseOwned(ctx, rec, Record{Dir: rec.Dir})
		if err != nil {
			return e.keepRemaining(name, remaining, err)
		}
		rec = remaining
		if err := e.runScript(ctx, sc, "post_uninstall", target.PostUninstall); err != nil {
			return e.keepRemaining(name, rec, newError(KindHook, name, StateUninstalling, err))
		}
	}

	remaining, err := e.releaseOwned(ctx, rec, Record{})
	if err != nil {
		return e.keepRemaining(name, remaining, err)
	}
	root := e.appRoot(name)
	if err := e.opts.System.RemoveAll(root); err != nil {
		return e.keepRemaining(name, remaining, fmt.Errorf(messages.InstallRemoveFmt, root, err))
	}
	if opts.Purge {
		dir := e.persistDir(name)
		if err := e.opts.System.RemoveAll(dir); err != nil {
			return newError(KindPermission, name, StateUninstalling, fmt.Errorf(messages.InstallRemoveFmt, dir, err))
		}
	}
	if err := e.records.delete(name); err != nil {
		return newError(KindRecord, name, StateUninstalling, err)
	}
	m.to(StateRemoved)
	e.opts.Logger.Info("uninstalled", "package", name, "version", rec.Version)
	return nil
}

// recordedTarget loads the manifest snapshot an install left behind.
func (e *Engine) recordedTarget(rec Record) (manifest.Target, error) {
	if rec.Manifest == "" {
		return manifest.Target{}, fmt.Errorf(messages.InstallSnapshotMissingFmt, rec.Name)
	}
	data, err := e.opts.System.ReadFile(rec.Manifest)
	if err != nil {
		return manifest.Target{}, fmt.Errorf(messages.InstallReadFileFmt, rec.Manifest, err)
	}
	m, err := manifest.ParseNamed(rec.Name, data)
	if err != nil {
		return manifest.Target{}, err
	}
	return m.Target(rec.Arch)
}

// keepRemaining rewrites the record to what is still owned and returns
// cause as an uninstall error.
func (e *Engine) keepRemaining(name string, remaining Record, cause error) error {
	if remaining.Owns() {
		if err := e.records.put(remaining); err != nil {
			e.opts.Logger.Error("could not update install record", "package", name, "err", err)
		}
	}
	return newError(KindPermission, name, StateUninstalling, cause)
}

// releaseOwned removes the side effects rec owns that keep does not, and
// returns rec narrowed to what could not be removed plus what keep shares.
func (e *Engine) releaseOwned(ctx context.Context, rec Record, keep Record) (Record, error) {
	sys := e.opts.System
	remaining := rec
	var errs []error

	remaining.Shims = nil
	for _, path := range rec.Shims {
		if contains(keep.Shims, path) {
			remaining.Shims = append(remaining.Shims, path)
			continue
		}
		if err := removeShim(sys, path, rec.Name); err != nil {
			errs = append(errs, err)
			remaining.Shims = append(remaining.Shims, path)
		}
	}

	var path []string
	for _, entry := range rec.Path {
		if !contains(keep.Path, entry) {
			path = append(path, entry)
		}
	}
	vars := make(map[string]string)
	for key, value := range rec.Env {
		if kept, ok := keep.Env[key]; !ok || kept != value {
			vars[key] = value
		}
	}
	shared, err := e.sharedActivation(rec.Name)
	if err == nil {
		err = e.activation.release(ctx, path, vars, shared)
	}
	if err != nil {
		errs = append(errs, err)
	} else {
		remaining.Path = keep.Path
		remaining.Env = keep.Env
	}

	if rec.Current != "" && rec.Current != keep.Current {
		if err := sys.Remove(rec.Current); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf(messages.InstallRemoveFmt, rec.Current, err))
		} else {
			remaining.Current = keep.Current
		}
	}
	if rec.Dir != "" && rec.Dir != keep.Dir {
		if err := removeVersionDir(sys, rec.Dir, e.opts.Paths.Apps); err != nil {
			errs = append(errs, err)
		} else {
			remaining.Dir = keep.Dir
		}
	}
	return remaining, errors.Join(errs...)
}

// sharedActivation collects the PATH entries and variables that installed
// packages other than name still list. The first record by name wins a
// variable set by several.
func (e *Engine) sharedActivation(name string) (sharedEnv, error) {
	records, err := e.records.List()
	if err != nil {
		return sharedEnv{}, err
	}
	shared := sharedEnv{path: make(map[string]bool), vars: make(map[string]string)}
	for _, rec := range records {
		if rec.Name == name {
			continue
		}
		for _, entry := range rec.Path {
			shared.path[entry] = true
		}
		for key, value := range rec.Env {
			if _, ok := shared.vars[key]; !ok {
				shared.vars[key] = value
			}
		}
	}
	return shared, nil
}

// removeVersionDir removes dir, refusing anything outside apps.
func removeVersionDir(sys System, dir string, apps string) error {
	if !filepath.IsAbs(dir) || filepath.Clean(dir) == filepath.Clean(apps) || !fsutil.IsWithin(apps, dir) {
		return fmt.Errorf(messages.InstallDirOutsideFmt, dir, apps)
	}
	if err := sys.RemoveAll(dir); err != nil {
		return fmt.Errorf(messages.InstallRemoveFmt, dir, err)
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, existing := range list {
		if existing == value {
			return true
		}
	}
	return false
}
