package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/export"
	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/rograph"
)

// openGraph opens the graph at path, or the configured one when path is
// empty. An unconfigured graph is in-memory and lasts for one command.
func (a *app) openGraph(path string) (rograph.Store, error) {
	if path == "" {
		path = a.cfg.GraphDB
	}
	g, err := rograph.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	return g, nil
}

// index adds ro to the configured graph database.
func (a *app) index(ctx context.Context, ro *mos.RunningOrder) error {
	if a.cfg.GraphDB == "" {
		return fmt.Errorf("%w: no graph database configured", errUsage)
	}
	g, err := a.openGraph("")
	if err != nil {
		return err
	}
	defer g.Close()
	stats, err := rograph.Index(ctx, g, ro)
	if err != nil {
		return err
	}
	a.log.Info("indexed running order", "ro", ro.ROID(), "stories", stats.StoryCount, "items", stats.ItemCount)
	return nil
}

// indexFiles parses each merged running order file and indexes it into g.
func indexFiles(ctx context.Context, g rograph.Store, paths []string) ([]string, error) {
	var ids []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		ro, err := mos.ParseRunningOrder(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if _, err := rograph.Index(ctx, g, ro); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		ids = append(ids, ro.ROID())
	}
	return ids, nil
}

func newIndexCmd(a *app) *cobra.Command {
	var graphPath string
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Index merged running order files into the graph database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if graphPath == "" && a.cfg.GraphDB == "" {
				return fmt.Errorf("%w: no graph database given", errUsage)
			}
			g, err := a.openGraph(graphPath)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx := cmd.Context()
			ids, err := indexFiles(ctx, g, args)
			if err != nil {
				return err
			}
			stats, err := g.Stats(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintf(a.out, "indexed %s\n", id)
			}
			fmt.Fprintf(a.out, "%d running orders, %d stories, %d items, %d edges\n",
				stats.RunningOrderCount, stats.StoryCount, stats.ItemCount, stats.EdgeCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "graph database directory (default from config)")
	return cmd
}

func newDiagramCmd(a *app) *cobra.Command {
	var graphPath string
	var from []string
	cmd := &cobra.Command{
		Use:   "diagram RO_ID",
		Short: "Print a Mermaid diagram of an indexed running order",
		Long: `diagram renders a running order from the graph database as a Mermaid
flowchart. With --from, the given merged files are indexed first, so a
diagram can be drawn without a persistent graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.openGraph(graphPath)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx := cmd.Context()
			if _, err := indexFiles(ctx, g, from); err != nil {
				return err
			}
			mermaid, err := export.GenerateMermaid(ctx, g, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, mermaid)
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "graph database directory (default from config)")
	cmd.Flags().StringSliceVar(&from, "from", nil, "merged running order files to index before drawing")
	return cmd
}

func newStoriesCmd(a *app) *cobra.Command {
	var graphPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "stories QUERY",
		Short: "Search indexed stories by slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if graphPath == "" && a.cfg.GraphDB == "" {
				return fmt.Errorf("%w: no graph database given", errUsage)
			}
			g, err := a.openGraph(graphPath)
			if err != nil {
				return err
			}
			defer g.Close()

			stories, err := g.QueryStories(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RO\tSTORY\tSLUG\tOFFSET\tDURATION")
			for _, s := range stories {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ROID, s.StoryID, s.Slug,
					export.FormatDuration(s.Offset), export.FormatDuration(s.Duration))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "", "graph database directory (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of stories")
	return cmd
}
