package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/terminal"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

var colorEnabled = terminal.ColorEnabled

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	root        string
	verbose     bool
	logFormat   string
	metricsFile string
	noColor     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logFormat != logFormatText && opts.logFormat != logFormatJSON {
				return fmt.Errorf(messages.RootLogFormatInvalidFmt, opts.logFormat)
			}
			color.NoColor = opts.noColor || !colorEnabled(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolP("version", "v", false, messages.RootVersionFlag)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", messages.RootFlagConfig)
	flags.StringVar(&opts.root, "root", "", messages.RootFlagRoot)
	flags.BoolVar(&opts.verbose, "verbose", false, messages.RootFlagVerbose)
	flags.StringVar(&opts.logFormat, "log-format", logFormatText, messages.RootFlagLogFormat)
	flags.StringVar(&opts.metricsFile, "metrics-file", "", messages.RootFlagMetricsFile)
	flags.BoolVar(&opts.noColor, "no-color", false, messages.RootFlagNoColor)

	cmd.AddCommand(
		newInstallCmd(opts),
		newPlanCmd(opts),
		newUninstallCmd(opts),
		newUpdateCmd(opts),
		newBucketCmd(opts),
		newSearchCmd(opts),
		newInfoCmd(opts),
		newCatCmd(opts),
		newListCmd(opts),
		newStatusCmd(opts),
		newCacheCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// newLogger builds the diagnostic logger. Diagnostics stay at warn unless
// --verbose is set so they do not interleave with command output.
func (o *rootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.logFormat == logFormatJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   messages.VersionUse,
		Short: messages.VersionShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}
