package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

func newUninstallCmd(root *rootOptions) *cobra.Command {
	var opts install.UninstallOptions
	cmd := &cobra.Command{
		Use:   messages.UninstallUse,
		Short: messages.UninstallShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			defer a.flushMetrics()

			failed := 0
			for _, arg := range args {
				name := manifest.NormalizeName(arg)
				rec, _, err := a.engine.Records().Get(name)
				if err == nil {
					err = a.engine.Uninstall(cmd.Context(), name, opts)
				}
				if err != nil {
					failed++
					_, _ = fmt.Fprintln(a.out, color.RedString(messages.UninstallFailedFmt, name, err))
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					continue
				}
				_, _ = fmt.Fprintln(a.out, color.GreenString(messages.UninstallDoneFmt, name, rec.Version))
			}
			if failed > 0 {
				return &SilentExitError{Code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Purge, "purge", "p", false, messages.UninstallFlagPurge)
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, messages.UninstallFlagForce)
	return cmd
}
