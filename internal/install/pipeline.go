package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/fsutil"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
	"github.com/conn-castle/shovel/internal/telemetry"
)

const (
	manifestFile = "manifest.json"
	stageAppDir  = "app"
)

// artifact is one verified download of a step.
type artifact struct {
	url  string
	hash manifest.Hash
	name string
	path string
}

type undoFunc func() error

// job is one plan step moving through the install pipeline. Everything up to
// Extracting writes only to the job's staging directory; Linking is the first
// transition that touches shared locations, and each change it makes pushes
// an undo func.
type job struct {
	e         *Engine
	step      resolve.Step
	m         *machine
	op        string
	target    manifest.Target
	staging   string
	artifacts []artifact
	undo      []undoFunc
	aside     string

	done     chan struct{}
	err      error
	duration time.Duration
}

func (e *Engine) newJob(step resolve.Step) *job {
	op := e.opts.NewID()
	return &job{
		e:       e,
		step:    step,
		m:       newMachine(step.Name, step.Version, StatePlanned, e.opts.Observer, e.opts.Now),
		op:      op,
		staging: filepath.Join(e.opts.Paths.Staging, op),
		done:    make(chan struct{}),
	}
}

func (j *job) appStage() string {
	return filepath.Join(j.staging, stageAppDir)
}

func (j *job) versionDir() string {
	return filepath.Join(j.e.appRoot(j.step.Name), j.step.Version)
}

func (j *job) cmd() string {
	if j.step.Action == resolve.ActionUpgrade {
		return cmdUpdate
	}
	return cmdInstall
}

func (j *job) scriptContext(dir string) scriptContext {
	return scriptContext{
		name:    j.step.Name,
		version: j.step.Version,
		bucket:  j.step.Bucket,
		arch:    j.target.Arch,
		dir:     dir,
		cmd:     j.cmd(),
	}
}

// wrap classifies err for the job's current state. Cancellation wins over
// whatever the failing stage would report.
func (j *job) wrap(ctx context.Context, kind ErrorKind, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		kind = KindCanceled
	}
	return newError(kind, j.step.Name, j.m.current(), err)
}

// prepare runs Fetching, Verifying and Extracting. On return the package
// sits in the staging directory and nothing shared has been touched. The
// package's own scripts wait for setup.
func (j *job) prepare(ctx context.Context) error {
	m := j.step.Manifest
	arch, ok := m.Compatible(j.e.opts.Arches)
	if !ok {
		return j.wrap(ctx, KindFetch, fmt.Errorf(messages.InstallNoCompatibleArchFmt, j.step.Name, j.e.opts.Arches))
	}
	target, err := m.Target(arch)
	if err != nil {
		return j.wrap(ctx, KindFetch, err)
	}
	j.target = target

	j.m.to(StateFetching)
	for i, url := range target.URLs {
		name, err := manifest.FilenameFromURL(url)
		if err != nil {
			return j.wrap(ctx, KindFetch, err)
		}
		h := target.Hashes[i]
		var res fetch.Result
		err = fetch.Retry(ctx, j.e.opts.Retry, func(ctx context.Context) error {
			var ferr error
			res, ferr = j.e.opts.Fetcher.Fetch(ctx, url, h)
			return ferr
		})
		if err != nil {
			return j.wrap(ctx, KindFetch, err)
		}
		j.artifacts = append(j.artifacts, artifact{url: url, hash: h, name: name, path: res.Path})
	}

	j.m.to(StateVerifying)
	for _, a := range j.artifacts {
		if err := j.e.opts.Fetcher.Cache().Verify(a.hash); err != nil {
			return j.wrap(ctx, KindVerify, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return j.wrap(ctx, KindCanceled, err)
	}

	j.m.to(StateExtracting)
	if err := j.extract(ctx); err != nil {
		return j.wrap(ctx, KindExtract, err)
	}
	return nil
}

// setup runs pre_install and the installer against the staged package. The
// scheduler calls it only once every plan dependency is installed, because
// both may run dependency executables through their shims.
func (j *job) setup(ctx context.Context) error {
	sc := j.scriptContext(j.appStage())
	if err := j.e.runScript(ctx, sc, "pre_install", j.target.PreInstall); err != nil {
		return j.wrap(ctx, KindHook, err)
	}
	if err := j.e.runInstaller(ctx, sc, "installer", j.target.Installer, true); err != nil {
		return j.wrap(ctx, KindHook, err)
	}
	return nil
}

func (j *job) extract(ctx context.Context) error {
	ctx, span := telemetry.Start(ctx, "extract", telemetry.Package(j.step.Name))
	var err error
	defer func() { telemetry.End(span, err) }()

	app := j.appStage()
	if err = os.MkdirAll(app, 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, app, err)
	}
	for i, a := range j.artifacts {
		scratch := filepath.Join(j.staging, "x"+strconv.Itoa(i))
		if err = extractArtifact(ctx, a.path, a.name, scratch, j.e.opts.Limits); err != nil {
			return err
		}
		var dest string
		dest, err = fsutil.SafeJoin(app, at(j.target.ExtractTo, i))
		if err != nil {
			return err
		}
		if err = placeExtracted(scratch, at(j.target.ExtractDir, i), dest); err != nil {
			return err
		}
		if err = os.RemoveAll(scratch); err != nil {
			return fmt.Errorf(messages.InstallRemoveFmt, scratch, err)
		}
	}
	if err = os.WriteFile(filepath.Join(app, manifestFile), j.step.Manifest.Raw, 0o644); err != nil {
		return fmt.Errorf(messages.InstallWriteFileFmt, manifestFile, err)
	}
	return nil
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}

// commit runs Linking and HookRunning and writes the record. It ignores
// cancellation: once Linking starts the package either completes or is
// rolled back.
func (j *job) commit(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	name := j.step.Name
	unlock, err := j.e.records.Lock(ctx, name)
	if err != nil {
		return newError(KindRecord, name, j.m.current(), err)
	}
	defer unlock()

	prev, hadPrev, err := j.e.records.Get(name)
	if err != nil {
		return newError(KindRecord, name, j.m.current(), err)
	}

	j.m.to(StateLinking)
	rec := Record{
		Name:        name,
		Version:     j.step.Version,
		Bucket:      j.step.Bucket,
		Arch:        j.target.Arch,
		InstalledAt: j.e.opts.Now().UTC(),
		Operation:   j.op,
	}
	if err := j.link(ctx, &rec); err != nil {
		return j.rollback(ctx, newError(KindLink, name, StateLinking, err))
	}

	j.m.to(StateHookRunning)
	sc := j.scriptContext(rec.Dir)
	if err := j.e.runScript(ctx, sc, "post_install", j.target.PostInstall); err != nil {
		return j.rollback(ctx, newError(KindHook, name, StateHookRunning, err))
	}
	if err := j.e.records.put(rec); err != nil {
		return j.rollback(ctx, newError(KindRecord, name, StateHookRunning, err))
	}

	if hadPrev {
		if _, err := j.e.releaseOwned(ctx, prev, rec); err != nil {
			j.e.opts.Logger.Warn("previous version left files behind", "package", name, "version", prev.Version, "err", err)
		}
	}
	if j.aside != "" {
		if err := j.e.opts.System.RemoveAll(j.aside); err != nil {
			j.e.opts.Logger.Warn("could not remove replaced directory", "package", name, "dir", j.aside, "err", err)
		}
	}
	return nil
}

// link moves the staged package into place and exposes it. The previous
// version stays usable until the current link is swapped.
func (j *job) link(ctx context.Context, rec *Record) (err error) {
	ctx, span := telemetry.Start(ctx, "link", telemetry.Package(j.step.Name))
	defer func() { telemetry.End(span, err) }()

	sys := j.e.opts.System
	name := j.step.Name
	dir := j.versionDir()
	current := j.e.currentLink(name)

	if err := sys.MkdirAll(j.e.appRoot(name), 0o755); err != nil {
		return fmt.Errorf(messages.InstallCreateDirFmt, j.e.appRoot(name), err)
	}
	if _, err := sys.Lstat(dir); err == nil {
		aside := filepath.Join(j.e.appRoot(name), "."+j.step.Version+".old-"+j.op)
		if err := sys.Rename(dir, aside); err != nil {
			return fmt.Errorf(messages.InstallMoveFmt, dir, aside, err)
		}
		j.aside = aside
		j.push(func() error {
			j.aside = ""
			return sys.Rename(aside, dir)
		})
	}
	if err := sys.Rename(j.appStage(), dir); err != nil {
		return fmt.Errorf(messages.InstallMoveFmt, j.appStage(), dir, err)
	}
	j.push(func() error { return sys.RemoveAll(dir) })
	rec.Dir = dir
	rec.Manifest = filepath.Join(dir, manifestFile)

	for _, entry := range j.step.Manifest.Persist {
		stored, created, err := persistLink(sys, dir, j.e.persistDir(name), entry)
		if created {
			j.push(func() error { return sys.RemoveAll(stored) })
		}
		if err != nil {
			return err
		}
		rec.Persist = append(rec.Persist, entry.Source)
	}

	sc := j.scriptContext(dir)
	expand := j.e.expander(sc, current)
	shims := make([]shim, 0, len(j.target.Bins))
	for _, bin := range j.target.Bins {
		exe, err := fsutil.SafeJoin(dir, bin.Executable)
		if err != nil {
			return err
		}
		if _, err := sys.Lstat(exe); err != nil {
			return fmt.Errorf(messages.InstallBinMissingFmt, bin.Executable, err)
		}
		target, err := fsutil.SafeJoin(current, bin.Executable)
		if err != nil {
			return err
		}
		args := make([]string, 0, len(bin.Args))
		for _, arg := range bin.Args {
			args = append(args, expand.Replace(arg))
		}
		shims = append(shims, shim{Package: name, Name: bin.ShimName(), Target: target, Args: args})
	}

	if err := j.swapCurrent(current); err != nil {
		return err
	}
	rec.Current = current

	if len(shims) > 0 {
		if err := sys.MkdirAll(j.e.opts.Paths.Shims, 0o755); err != nil {
			return fmt.Errorf(messages.InstallCreateDirFmt, j.e.opts.Paths.Shims, err)
		}
	}
	for _, s := range shims {
		path := shimPath(j.e.opts.Paths.Shims, s.Name, j.e.opts.GOOS)
		prev, changed, err := writeShim(sys, path, name, s.content(j.e.opts.GOOS))
		if err != nil {
			return err
		}
		if changed {
			j.push(func() error { return prev.restore(sys) })
		}
		rec.Shims = appendUnique(rec.Shims, path)
	}

	var pathEntries []string
	for _, entry := range j.target.EnvAddPath {
		entry = expand.Replace(entry)
		if !filepath.IsAbs(entry) {
			joined, err := fsutil.SafeJoin(current, entry)
			if err != nil {
				return err
			}
			entry = joined
		}
		pathEntries = appendUnique(pathEntries, entry)
	}
	var vars map[string]string
	if len(j.target.EnvSet) > 0 {
		vars = make(map[string]string, len(j.target.EnvSet))
		for key, value := range j.target.EnvSet {
			vars[key] = expand.Replace(value)
		}
	}
	edit, err := j.e.activation.apply(ctx, pathEntries, vars)
	if err != nil {
		return err
	}
	j.push(func() error { return j.e.activation.revert(context.Background(), edit) })
	rec.Path = pathEntries
	rec.Env = vars
	return nil
}

// swapCurrent points the current link at the job's version with a rename,
// so the link is never missing.
func (j *job) swapCurrent(current string) error {
	sys := j.e.opts.System
	prevTarget, readErr := sys.Readlink(current)
	if err := replaceLink(sys, j.step.Version, current, j.op); err != nil {
		return err
	}
	j.push(func() error {
		if readErr == nil {
			return replaceLink(sys, prevTarget, current, j.op)
		}
		return sys.Remove(current)
	})
	return nil
}

func replaceLink(sys System, target string, link string, op string) error {
	tmp := link + ".tmp-" + op
	_ = sys.Remove(tmp)
	if err := sys.Symlink(target, tmp); err != nil {
		return fmt.Errorf(messages.InstallLinkFmt, link, target, err)
	}
	if err := sys.Rename(tmp, link); err != nil {
		_ = sys.Remove(tmp)
		return fmt.Errorf(messages.InstallLinkFmt, link, target, err)
	}
	return nil
}

func (j *job) push(fn undoFunc) {
	j.undo = append(j.undo, fn)
}

// rollback reverses every change Linking made, newest first, and returns
// cause. Undo failures are logged; the cause is what the caller sees.
func (j *job) rollback(ctx context.Context, cause error) error {
	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	j.undo = nil
	if err := errors.Join(errs...); err != nil {
		j.e.opts.Logger.ErrorContext(ctx, "rollback incomplete", "package", j.step.Name, "err", err)
	}
	return cause
}

func (j *job) cleanupStaging() {
	if err := j.e.opts.System.RemoveAll(j.staging); err != nil {
		j.e.opts.Logger.Warn("could not remove staging directory", "package", j.step.Name, "dir", j.staging, "err", err)
	}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
