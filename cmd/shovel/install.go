package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/resolve"
)

type installOptions struct {
	arch      string
	noUpdate  bool
	workers   int
	reinstall bool
}

func newInstallCmd(root *rootOptions) *cobra.Command {
	var opts installOptions
	cmd := &cobra.Command{
		Use:   messages.InstallUse,
		Short: messages.InstallShort,
		Long:  messages.InstallLong,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") && opts.workers < 1 {
				return errors.New(messages.InstallWorkersInvalid)
			}
			reqs, err := resolve.ParseRequests(args)
			if err != nil {
				return err
			}
			a, err := root.open(cmd, appOverrides{arch: opts.arch, workers: opts.workers})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if !opts.noUpdate {
				_ = a.syncBuckets(ctx, false)
			}
			plan, err := a.resolver(opts.reinstall).Resolve(ctx, reqs)
			if err != nil {
				return err
			}
			return a.runPlan(ctx, plan)
		},
	}
	cmd.Flags().StringVarP(&opts.arch, "arch", "a", "", messages.InstallFlagArch)
	cmd.Flags().BoolVarP(&opts.noUpdate, "no-update", "u", false, messages.InstallFlagNoUpdate)
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, messages.InstallFlagWorkers)
	cmd.Flags().BoolVar(&opts.reinstall, "reinstall", false, messages.InstallFlagReinstall)
	return cmd
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	var opts installOptions
	cmd := &cobra.Command{
		Use:   messages.PlanUse,
		Short: messages.PlanShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := resolve.ParseRequests(args)
			if err != nil {
				return err
			}
			a, err := root.open(cmd, appOverrides{arch: opts.arch})
			if err != nil {
				return err
			}
			plan, err := a.resolver(opts.reinstall).Resolve(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return plan.Render(a.out)
		},
	}
	cmd.Flags().StringVarP(&opts.arch, "arch", "a", "", messages.InstallFlagArch)
	cmd.Flags().BoolVar(&opts.reinstall, "reinstall", false, messages.PlanFlagReinstall)
	return cmd
}

func (a *app) resolver(reinstall bool) *resolve.Resolver {
	return resolve.New(a.buckets, a.engine.Records(), resolve.Options{Reinstall: reinstall, Logger: a.logger})
}

// syncBuckets fast-forwards every bucket. Failures are warnings: resolution
// continues against the pinned revisions.
func (a *app) syncBuckets(ctx context.Context, verbose bool) error {
	results, err := a.buckets.SyncAll(ctx)
	for _, res := range results {
		switch {
		case res.Bucket == "":
		case res.Changed:
			_, _ = fmt.Fprintf(a.out, messages.SyncChangedFmt+"\n", res.Bucket, shortRevision(res.From), shortRevision(res.To))
		case verbose:
			_, _ = fmt.Fprintf(a.out, messages.SyncUnchangedFmt+"\n", res.Bucket)
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.errOut, messages.SyncWarningFmt, color.YellowString("%v", err))
	}
	return err
}

// runPlan installs plan and prints the outcome. Package failures have been
// reported by the time it returns, so they surface as a silent exit.
func (a *app) runPlan(ctx context.Context, plan *resolve.Plan) error {
	printSatisfied(a.out, plan)
	if plan.Empty() {
		return nil
	}
	report, err := a.engine.Install(ctx, plan)
	a.flushMetrics()
	if report != nil {
		printReport(a.out, report)
	}
	if err != nil {
		if report == nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &SilentExitError{Code: 1}
	}
	return nil
}

const revisionDisplayLength = 7

func shortRevision(rev string) string {
	if len(rev) > revisionDisplayLength {
		return rev[:revisionDisplayLength]
	}
	return rev
}
