package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conn-castle/shovel/internal/fetch"
	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

const cacheDateLayout = "2006-01-02 15:04"

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   messages.CacheUse,
		Short: messages.CacheShort,
	}
	cmd.AddCommand(newCacheShowCmd(root), newCacheRmCmd(root))
	return cmd
}

func newCacheShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.CacheShowUse,
		Short: messages.CacheShowShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			entries, err := a.fetcher.Cache().List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(a.out, messages.CacheShowEmpty)
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, messages.CacheShowHeader)
			var total int64
			for _, entry := range entries {
				total += entry.Size
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", entry.Hash, fetch.HumanSize(entry.Size), entry.ModTime.Local().Format(cacheDateLayout))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, messages.CacheTotalFmt+"\n", len(entries), fetch.HumanSize(total))
			return nil
		},
	}
}

func newCacheRmCmd(root *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   messages.CacheRmUse,
		Short: messages.CacheRmShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New(messages.CacheRmArgs)
			}
			hashes := make([]manifest.Hash, 0, len(args))
			for _, arg := range args {
				h, err := manifest.ParseHash(arg)
				if err != nil {
					return fmt.Errorf(messages.CacheRmHashFmt, arg, err)
				}
				hashes = append(hashes, h)
			}
			a, err := root.open(cmd, appOverrides{})
			if err != nil {
				return err
			}
			cache := a.fetcher.Cache()
			removed := 0
			if all {
				removed, err = cache.Clear()
				if err != nil {
					return err
				}
			}
			for _, h := range hashes {
				if !cache.Has(h) {
					continue
				}
				if err := cache.Remove(h); err != nil {
					return err
				}
				removed++
			}
			_, _ = fmt.Fprintf(a.out, messages.CacheRmDoneFmt+"\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, messages.CacheRmFlagAll)
	return cmd
}
