package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/archive"
)

func newArchiveCmd(a *app) *cobra.Command {
	var dir, prefix string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store MOS messages in a local archive and list them",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&dir, "archive", "", "archive directory (default from config)")
	pf.StringVarP(&prefix, "prefix", "p", "", "key prefix")

	open := func() (*archive.Store, error) {
		if dir == "" {
			dir = a.cfg.Archive
		}
		if dir == "" {
			return nil, fmt.Errorf("%w: no archive directory given", errUsage)
		}
		return archive.Open(dir)
	}

	put := &cobra.Command{
		Use:   "put FILE...",
		Short: "Archive files under prefix/<file name>",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			return a.archivePut(cmd.Context(), store, prefix, args)
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived messages under prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()
			return a.archiveList(cmd.Context(), store, prefix)
		},
	}
	cmd.AddCommand(put, list)
	return cmd
}

func (a *app) archivePut(ctx context.Context, store *archive.Store, prefix string, paths []string) error {
	var total uint64
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.Base(p))
		info, err := store.Put(ctx, key, data)
		if err != nil {
			return err
		}
		total += uint64(info.Size)
		kind := info.Kind
		if kind == "" {
			kind = "unclassified"
		}
		fmt.Fprintf(a.out, "%s: %s\n", key, kind)
	}
	a.log.Info("archived messages", "count", len(paths), "size", humanize.Bytes(total))
	return nil
}

func (a *app) archiveList(ctx context.Context, store *archive.Store, prefix string) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tKIND\tMESSAGE\tRO\tSIZE\tSTORED")
	err := store.Walk(ctx, prefix, func(info archive.Info) error {
		msgID := "-"
		if info.Kind != "" {
			msgID = strconv.Itoa(info.MessageID)
		}
		_, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Key, orDash(info.Kind), msgID, orDash(info.ROID),
			humanize.Bytes(uint64(info.Size)), humanize.Time(info.StoredAt))
		return err
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
