package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/aymanbagabas/go-udiff"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
	"github.com/conn-castle/shovel/internal/version"
)

type updateOptions struct {
	all  bool
	diff bool
}

func newUpdateCmd(root *rootOptions) *cobra.Command {
	var opts updateOptions
	cmd := &cobra.Command{
		Use:   messages.UpdateUse,
		Short: messages.UpdateShort,
		Long:  messages.UpdateLong,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.all && len(args) > 0 {
				return errors.New(messages.UpdateArgsWithAll)
			}
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			syncErr := a.syncBuckets(ctx, true)
			if !opts.all && len(args) == 0 {
				if syncErr != nil {
					return &SilentExitError{Code: 1}
				}
				return nil
			}

			reqs, failed, err := a.upgradeRequests(args, opts.all)
			if err != nil {
				return err
			}
			if len(reqs) > 0 {
				plan, err := a.resolver(false).Resolve(ctx, reqs)
				if err != nil {
					return err
				}
				if opts.diff {
					a.printManifestDiffs(plan)
				}
				if err := a.runPlan(ctx, plan); err != nil {
					return err
				}
			}
			if failed {
				return &SilentExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, messages.UpdateFlagAll)
	cmd.Flags().BoolVar(&opts.diff, "diff", false, messages.UpdateFlagDiff)
	return cmd
}

// upgradeRequests pins each outdated package to the newest version in the
// bucket it was installed from. Packages that are up to date or no longer
// carried by any bucket are reported and skipped; names that are not
// installed mark the run as failed.
func (a *app) upgradeRequests(args []string, all bool) ([]resolve.Request, bool, error) {
	statuses, err := a.engine.Status(a.buckets)
	if err != nil {
		return nil, false, err
	}
	byName := make(map[string]install.Status, len(statuses))
	for _, st := range statuses {
		byName[st.Name] = st
	}

	var names []string
	if all {
		for _, st := range statuses {
			names = append(names, st.Name)
		}
	} else {
		for _, arg := range args {
			names = append(names, manifest.NormalizeName(arg))
		}
	}

	failed := false
	var reqs []resolve.Request
	for _, name := range names {
		st, ok := byName[name]
		switch {
		case !ok:
			failed = true
			_, _ = fmt.Fprintln(a.out, color.RedString(messages.UpdateNotInstalledFmt, name))
		case st.Missing:
			_, _ = fmt.Fprintln(a.out, color.YellowString(messages.UpdateMissingFmt, st.Name, st.Installed))
		case !st.Outdated:
			_, _ = fmt.Fprintf(a.out, messages.UpdateUpToDateFmt+"\n", st.Name, st.Installed)
		default:
			constraint, err := version.ParseConstraint(st.Latest)
			if err != nil {
				return nil, false, err
			}
			reqs = append(reqs, resolve.Request{Name: st.Name, Bucket: st.Bucket, Constraint: constraint})
		}
	}
	return reqs, failed, nil
}

// printManifestDiffs shows, for each upgrade in plan, how the bucket manifest
// changed since the installed version's snapshot.
func (a *app) printManifestDiffs(plan *resolve.Plan) {
	for _, step := range plan.Steps {
		if step.Action != resolve.ActionUpgrade {
			continue
		}
		rec, ok, err := a.engine.Records().Get(step.Name)
		if err != nil || !ok || rec.Manifest == "" {
			_, _ = fmt.Fprintln(a.out, color.YellowString(messages.UpdateNoSnapshotFmt, step.Name, step.From))
			continue
		}
		_, _ = fmt.Fprintln(a.out, color.CyanString(messages.UpdateDiffHeaderFmt, step.Name, step.From, step.Version))
		writeManifestDiff(a.out, step, rec.Manifest)
	}
}

func writeManifestDiff(out io.Writer, step resolve.Step, installed string) {
	from := fmt.Sprintf(messages.UpdateDiffFromFmt, step.Name, step.From)
	to := fmt.Sprintf(messages.UpdateDiffToFmt, step.Name, step.Version, step.Bucket)
	_, _ = io.WriteString(out, udiff.Unified(from, to, withNewline(installed), withNewline(string(step.Manifest.Raw))))
}

func withNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
