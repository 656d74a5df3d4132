package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/messages"
)

const bucketDateLayout = "2006-01-02"

func newBucketCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.BucketUse,
		Short: messages.BucketShort,
	}
	cmd.AddCommand(
		newBucketAddCmd(root),
		newBucketRmCmd(root),
		newBucketListCmd(root),
		newBucketKnownCmd(),
		newBucketUpdateCmd(root),
		newBucketVerifyCmd(root),
	)
	return cmd
}

func newBucketAddCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.BucketAddUse,
		Short: messages.BucketAddShort,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			remote := ""
			if len(args) == 2 {
				remote = args[1]
			}
			b, err := a.buckets.Add(cmd.Context(), args[0], remote)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, color.GreenString(messages.BucketAddDoneFmt, b.Name, b.Remote, shortRevision(b.Revision)))
			return nil
		},
	}
}

func newBucketRmCmd(root *rootOptions) *cobra.Command {
	var opts bucket.RemoveOptions
	cmd := &cobra.Command{
		Use:     messages.BucketRmUse,
		Aliases: []string{"remove"},
		Short:   messages.BucketRmShort,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			if err := a.buckets.Remove(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, messages.BucketRmDoneFmt+"\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, messages.BucketRmFlagForce)
	return cmd
}

func newBucketListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.BucketListUse,
		Short: messages.BucketListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			buckets, err := a.buckets.List()
			if err != nil {
				return err
			}
			if len(buckets) == 0 {
				_, _ = fmt.Fprintln(a.out, messages.BucketListEmpty)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, messages.BucketListHeader)
			for _, b := range buckets {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Name, b.Remote, shortRevision(b.Revision), b.AddedAt.Local().Format(bucketDateLayout))
			}
			return tw.Flush()
		},
	}
}

func newBucketKnownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   messages.BucketKnownUse,
		Short: messages.BucketKnownShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, known := range bucket.KnownBuckets() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", known.Name, known.Remote)
			}
			return tw.Flush()
		},
	}
}

func newBucketUpdateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.BucketUpdateUse,
		Short: messages.BucketUpdateShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if err := a.syncBuckets(cmd.Context(), true); err != nil {
					return &SilentExitError{Code: 1}
				}
				return nil
			}
			for _, name := range args {
				res, err := a.buckets.Sync(cmd.Context(), name)
				if err != nil {
					return err
				}
				if res.Changed {
					_, _ = fmt.Fprintf(a.out, messages.SyncChangedFmt+"\n", res.Bucket, shortRevision(res.From), shortRevision(res.To))
				} else {
					_, _ = fmt.Fprintf(a.out, messages.SyncUnchangedFmt+"\n", res.Bucket)
				}
			}
			return nil
		},
	}
}

func newBucketVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.BucketVerifyUse,
		Short: messages.BucketVerifyShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				buckets, err := a.buckets.List()
				if err != nil {
					return err
				}
				for _, b := range buckets {
					names = append(names, b.Name)
				}
			}
			bad := false
			for _, name := range names {
				report, err := a.buckets.Verify(name)
				if err != nil {
					return err
				}
				if len(report.Problems) == 0 {
					_, _ = fmt.Fprintln(a.out, color.GreenString(messages.BucketVerifyOKFmt, report.Bucket, report.Checked, shortRevision(report.Revision)))
					continue
				}
				bad = true
				_, _ = fmt.Fprintln(a.out, color.RedString(messages.BucketVerifyBadFmt, report.Bucket, len(report.Problems), report.Checked, shortRevision(report.Revision)))
				for _, p := range report.Problems {
					_, _ = fmt.Fprintf(a.out, messages.BucketVerifyProblemFmt+"\n", p.Name, p.Err)
				}
			}
			if bad {
				return &SilentExitError{Code: 1}
			}
			return nil
		},
	}
}
