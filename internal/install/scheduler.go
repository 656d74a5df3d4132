package install

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
	"github.com/conn-castle/shovel/internal/telemetry"
)

// Result is the outcome for one plan step.
type Result struct {
	Name     string
	Version  string
	Bucket   string
	Action   resolve.Action
	From     string
	State    State
	Err      error
	Duration time.Duration
	// Notes and Suggest are copied from the manifest for display after a
	// successful install.
	Notes   []string
	Suggest map[string][]string
}

// Report collects the results of a plan, in plan order.
type Report struct {
	Results []Result
}

// Failed returns the results that did not reach Installed.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Install executes plan. Independent packages are fetched and extracted
// concurrently, up to Options.Workers at a time; a package runs its install
// scripts and commits only after each of its plan dependencies has committed. A failed package fails its dependents
// and leaves unrelated packages alone. The returned error joins every
// package failure; the report is always complete.
func (e *Engine) Install(ctx context.Context, plan *resolve.Plan) (report *Report, err error) {
	ctx, span := telemetry.Start(ctx, "install")
	defer func() { telemetry.End(span, err) }()

	jobs := make([]*job, 0, len(plan.Steps))
	byName := make(map[string]*job, len(plan.Steps))
	for _, step := range plan.Steps {
		j := e.newJob(step)
		jobs = append(jobs, j)
		byName[step.Name] = j
	}

	sem := semaphore.NewWeighted(int64(e.opts.Workers))
	var g errgroup.Group
	for _, j := range jobs {
		deps := make([]*job, 0, len(j.step.Dependencies))
		for _, name := range j.step.Dependencies {
			if dep, ok := byName[name]; ok {
				deps = append(deps, dep)
			}
		}
		g.Go(func() error {
			j.run(ctx, sem, deps)
			return nil
		})
	}
	_ = g.Wait()

	report = &Report{Results: make([]Result, 0, len(jobs))}
	var errs []error
	for _, j := range jobs {
		res := Result{
			Name:     j.step.Name,
			Version:  j.step.Version,
			Bucket:   j.step.Bucket,
			Action:   j.step.Action,
			From:     j.step.From,
			State:    j.m.current(),
			Err:      j.err,
			Duration: j.duration,
		}
		if j.err == nil {
			res.Notes = j.step.Manifest.Notes
			res.Suggest = j.step.Manifest.Suggest
		} else {
			errs = append(errs, j.err)
		}
		report.Results = append(report.Results, res)
	}
	return report, errors.Join(errs...)
}

// run takes the job through its pipeline. It always closes done.
func (j *job) run(ctx context.Context, sem *semaphore.Weighted, deps []*job) {
	start := j.e.opts.Now()
	ctx, span := telemetry.Start(ctx, "install.package", telemetry.Package(j.step.Name))
	defer func() {
		j.duration = j.e.opts.Now().Sub(start)
		if j.err != nil {
			j.m.fail(j.err)
			j.e.opts.Logger.Error("install failed", "package", j.step.Name, "version", j.step.Version, "err", j.err)
		} else {
			j.e.opts.Logger.Info("installed", "package", j.step.Name, "version", j.step.Version, "duration", j.duration)
		}
		telemetry.End(span, j.err)
		close(j.done)
	}()
	defer j.cleanupStaging()

	if err := sem.Acquire(ctx, 1); err != nil {
		j.err = j.wrap(ctx, KindCanceled, err)
		return
	}
	err := j.prepare(ctx)
	sem.Release(1)
	if err != nil {
		j.err = err
		return
	}

	for _, dep := range deps {
		select {
		case <-dep.done:
		case <-ctx.Done():
			j.err = j.wrap(ctx, KindCanceled, ctx.Err())
			return
		}
		if dep.err != nil {
			j.err = newError(KindDependency, j.step.Name, j.m.current(), fmt.Errorf(messages.InstallDependencyFailedFmt, dep.step.Name))
			return
		}
	}
	if err := ctx.Err(); err != nil {
		j.err = j.wrap(ctx, KindCanceled, err)
		return
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		j.err = j.wrap(ctx, KindCanceled, err)
		return
	}
	err = j.setup(ctx)
	if err == nil {
		err = j.commit(ctx)
	}
	sem.Release(1)
	if err != nil {
		j.err = err
		return
	}
	j.m.to(StateInstalled)
}
