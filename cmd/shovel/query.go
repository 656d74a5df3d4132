package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conn-castle/shovel/internal/bucket"
	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"

	listDateLayout = "2006-01-02 15:04"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.SearchUse,
		Short: messages.SearchShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			results, err := a.buckets.Search(query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(a.out, messages.SearchNoResults)
				return nil
			}
			for _, r := range results {
				version := ""
				if m, err := a.buckets.Resolve(r.Bucket + "/" + r.Name); err == nil {
					version = m.Manifest.Version
				}
				_, _ = fmt.Fprintln(a.out, strings.TrimSpace(fmt.Sprintf(messages.SearchResultFmt, highlight(r.Name, r.MatchedIndexes), r.Bucket, version)))
			}
			return nil
		},
	}
}

// highlight bolds the runes of name at the fuzzy-matched byte offsets.
func highlight(name string, matched []int) string {
	if len(matched) == 0 || color.NoColor {
		return name
	}
	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}
	bold := color.New(color.Bold, color.FgCyan)
	var b strings.Builder
	for i, r := range name {
		if hit[i] {
			b.WriteString(bold.Sprint(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// packageInfo is the info view of a manifest, shared by every output format.
type packageInfo struct {
	Name          string   `json:"name" yaml:"name"`
	Version       string   `json:"version" yaml:"version"`
	Bucket        string   `json:"bucket" yaml:"bucket"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Homepage      string   `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	License       string   `json:"license,omitempty" yaml:"license,omitempty"`
	Depends       []string `json:"depends,omitempty" yaml:"depends,omitempty"`
	Binaries      []string `json:"binaries,omitempty" yaml:"binaries,omitempty"`
	Architectures []string `json:"architectures,omitempty" yaml:"architectures,omitempty"`
	Installed     string   `json:"installed,omitempty" yaml:"installed,omitempty"`
	Notes         []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func newInfoCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   messages.InfoUse,
		Short: messages.InfoShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON && format != formatYAML {
				return fmt.Errorf(messages.InfoFormatInvalidFmt, format)
			}
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			match, err := a.buckets.Resolve(args[0])
			if err != nil {
				return err
			}
			info, err := a.describe(match)
			if err != nil {
				return err
			}
			return writeInfo(a.out, info, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, messages.InfoFlagFormat)
	return cmd
}

func (a *app) describe(match bucket.Match) (packageInfo, error) {
	m := match.Manifest
	info := packageInfo{
		Name:        m.Name,
		Version:     m.Version,
		Bucket:      match.Bucket,
		Description: m.Description,
		Homepage:    m.Homepage,
		License:     m.License.String(),
		Notes:       m.Notes,
	}
	for _, dep := range m.Depends {
		info.Depends = append(info.Depends, dep.String())
	}
	for _, arch := range m.Architectures() {
		info.Architectures = append(info.Architectures, string(arch))
	}
	if arch, ok := m.Compatible(a.arches()); ok {
		if target, err := m.Target(arch); err == nil {
			for _, bin := range target.Bins {
				info.Binaries = append(info.Binaries, bin.ShimName())
			}
		}
	}
	rec, ok, err := a.engine.Records().Get(m.Name)
	if err != nil {
		return packageInfo{}, err
	}
	if ok {
		info.Installed = fmt.Sprintf(messages.InfoInstalledAtFmt, rec.Version, rec.Bucket)
	}
	return info, nil
}

// arches returns the architectures an install would accept, most preferred
// first.
func (a *app) arches() []manifest.Arch {
	if arch, err := manifest.ParseArch(a.cfg.Architecture); err == nil {
		return []manifest.Arch{arch}
	}
	return manifest.CompatibleArches(manifest.NativeArch())
}

func writeInfo(out io.Writer, info packageInfo, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf(messages.InfoEncodeFmt, err)
		}
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf(messages.InfoEncodeFmt, err)
		}
		return enc.Close()
	}

	installed := info.Installed
	if installed == "" {
		installed = messages.InfoNotInstalled
	}
	rows := []struct {
		label string
		value string
	}{
		{messages.InfoName, info.Name},
		{messages.InfoVersion, info.Version},
		{messages.InfoBucket, info.Bucket},
		{messages.InfoDescription, info.Description},
		{messages.InfoHomepage, info.Homepage},
		{messages.InfoLicense, info.License},
		{messages.InfoDepends, strings.Join(info.Depends, ", ")},
		{messages.InfoBinaries, strings.Join(info.Binaries, ", ")},
		{messages.InfoArchitectures, strings.Join(info.Architectures, ", ")},
		{messages.InfoInstalled, installed},
		{messages.InfoNotes, strings.Join(info.Notes, "\n\t")},
	}
	tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		_, _ = fmt.Fprintf(tw, messages.InfoRowFmt, row.label, row.value)
	}
	return tw.Flush()
}

func newCatCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.CatUse,
		Short: messages.CatShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			_, raw, err := a.buckets.RawManifest(args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.out, withNewline(string(raw)))
			return err
		},
	}
}

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.ListUse,
		Short: messages.ListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			records, err := a.engine.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				_, _ = fmt.Fprintln(a.out, messages.ListEmpty)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, messages.ListHeader)
			for _, rec := range records {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.Name, rec.Version, rec.Bucket, rec.Arch, rec.InstalledAt.Local().Format(listDateLayout))
			}
			return tw.Flush()
		},
	}
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.StatusUse,
		Short: messages.StatusShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			statuses, err := a.engine.Status(a.buckets)
			if err != nil {
				return err
			}
			printStatus(a.out, statuses)
			return nil
		},
	}
}

func printStatus(out io.Writer, statuses []install.Status) {
	clean := true
	for _, st := range statuses {
		switch {
		case st.Missing:
			clean = false
			_, _ = fmt.Fprintln(out, color.YellowString(messages.StatusMissingFmt, st.Name, st.Installed))
		case st.Outdated:
			clean = false
			_, _ = fmt.Fprintln(out, color.CyanString(messages.StatusOutdatedFmt, st.Name, st.Installed, st.Latest, st.Bucket))
		}
	}
	if clean {
		_, _ = fmt.Fprintln(out, messages.StatusUpToDate)
	}
}
