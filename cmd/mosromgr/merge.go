package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/archive"
	"github.com/dusk-indust/mosromgr/internal/metrics"
	"github.com/dusk-indust/mosromgr/internal/notify"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/source"
)

type mergeFlags struct {
	files   []string
	dir     string
	bucket  string
	archive string
	prefix  string
	suffix  string
	outfile string

	incomplete bool
	nonStrict  bool
	index      bool
	progress   bool
	plan       bool
	textfile   string
}

func newMergeCmd(a *app) *cobra.Command {
	var f mergeFlags
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a running order's MOS messages",
		Long: `merge reads one roCreate, its deltas and optionally the roDelete, from
files, a directory, an S3 bucket prefix or an archive prefix, and writes the
final running order XML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMerge(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.files, "files", "f", nil, "the MOS files to merge")
	fl.StringVarP(&f.dir, "directory", "d", "", "directory of MOS files to merge")
	fl.StringVarP(&f.bucket, "bucket-name", "b", "", "S3 bucket containing MOS files")
	fl.StringVar(&f.archive, "archive", "", "archive directory containing MOS files")
	fl.StringVarP(&f.prefix, "prefix", "p", "", "key prefix of the MOS files")
	fl.StringVar(&f.suffix, "suffix", "", "key suffix of the MOS files (default from config, .mos.xml)")
	fl.StringVarP(&f.outfile, "outfile", "o", "", "write the running order to a file instead of stdout")
	fl.BoolVarP(&f.incomplete, "incomplete", "i", false, "allow a collection without a roDelete")
	fl.BoolVar(&f.nonStrict, "non-strict", false, "skip deltas that cannot be applied instead of failing")
	fl.BoolVar(&f.index, "index", false, "index the merged running order into the configured graph database")
	fl.BoolVar(&f.progress, "progress", false, "print per-message progress to stderr")
	fl.BoolVar(&f.plan, "plan", false, "validate and print the merge order without merging")
	fl.StringVar(&f.textfile, "metrics-textfile", "", "write merge metrics in the Prometheus text format to this file")
	cmd.MarkFlagsMutuallyExclusive("files", "directory", "bucket-name", "archive")
	return cmd
}

func (a *app) runMerge(ctx context.Context, f mergeFlags) error {
	suffix := f.suffix
	if suffix == "" {
		suffix = a.cfg.Suffix
	}
	srcs, cleanup, err := a.mergeSources(ctx, f, suffix)
	if err != nil {
		return err
	}
	defer cleanup()

	if f.plan {
		c, err := orchestrator.New(ctx, srcs, a.collectionOptions(f.incomplete, f.nonStrict))
		if err != nil {
			return err
		}
		return printPlan(a.out, c)
	}

	n, err := a.notifier()
	if err != nil {
		return err
	}
	defer n.Close()
	rec := metrics.NewRecorder()

	opts := a.collectionOptions(f.incomplete, f.nonStrict)
	onProgress := []func(orchestrator.ProgressEvent){rec.Observe, notify.FromProgress(ctx, n)}
	if f.progress {
		onProgress = append(onProgress, func(ev orchestrator.ProgressEvent) {
			fmt.Fprintln(a.errOut, orchestrator.FormatProgress(ev))
		})
	}
	opts.OnProgress = orchestrator.Tee(onProgress...)

	start := time.Now()
	res, err := merge(ctx, srcs, opts, func(c *orchestrator.Collection) {
		if f.progress {
			fmt.Fprintln(a.errOut, orchestrator.FormatPhaseHeader(c.ROID(), orchestrator.PhaseMerge, c.Len()))
		}
	})
	rec.ObserveMerge(res, err, time.Since(start))
	notify.Merged(ctx, n, res, err)
	if f.textfile != "" {
		if werr := prometheus.WriteToTextfile(f.textfile, rec.Registry()); werr != nil {
			a.log.Warn("failed to write metrics", "path", f.textfile, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	ro := res.RunningOrder
	data, err := ro.XML()
	if err != nil {
		return err
	}
	a.log.Info("merged running order",
		"ro", ro.ROID(), "slug", ro.Slug(), "messages", res.Applied+res.Skipped+1,
		"skipped", res.Skipped, "completed", ro.Completed(), "size", humanize.Bytes(uint64(len(data))))

	if f.index {
		if err := a.index(ctx, ro); err != nil {
			return err
		}
	}
	if f.outfile != "" {
		return os.WriteFile(f.outfile, data, 0o644)
	}
	_, err = a.out.Write(append(data, '\n'))
	return err
}

// merge validates the collection, hands it to validated and merges it.
func merge(ctx context.Context, srcs []source.Source, opts orchestrator.Options, validated func(*orchestrator.Collection)) (*orchestrator.Result, error) {
	c, err := orchestrator.New(ctx, srcs, opts)
	if err != nil {
		return nil, err
	}
	validated(c)
	return c.Merge(ctx)
}

// printPlan lists the collection's messages in the order Merge applies them.
func printPlan(w io.Writer, c *orchestrator.Collection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESSAGE\tKIND\tSOURCE")
	for _, e := range append([]orchestrator.Entry{c.Create()}, c.Deltas()...) {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.MessageID, e.Kind, e.Source.ID())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, d := range c.Diagnostics() {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
	return nil
}

// mergeSources resolves the flags to a source list. The returned cleanup
// must be called once the merge is done.
func (a *app) mergeSources(ctx context.Context, f mergeFlags, suffix string) ([]source.Source, func(), error) {
	nop := func() {}
	switch {
	case len(f.files) > 0:
		return source.Files(f.files...), nop, nil
	case f.dir != "":
		paths, err := dirFiles(f.dir, suffix)
		if err != nil {
			return nil, nop, err
		}
		return source.Files(paths...), nop, nil
	case f.archive != "" || f.bucket != "" || (f.prefix != "" && a.cfg.S3.Bucket != ""):
		return a.storeSources(ctx, f.bucket, f.archive, f.prefix, suffix)
	default:
		return nil, nop, fmt.Errorf("%w: files, a directory, or a bucket or archive with a prefix must be provided", errUsage)
	}
}

// storeSources lists the messages under prefix in the archive at dir or,
// when dir is empty, in bucket (the configured one when empty). The
// returned cleanup must be called once the sources have been read.
func (a *app) storeSources(ctx context.Context, bucket, dir, prefix, suffix string) ([]source.Source, func(), error) {
	nop := func() {}
	if dir != "" {
		store, err := archive.Open(dir)
		if err != nil {
			return nil, nop, err
		}
		srcs, err := source.Objects(ctx, store, prefix, suffix)
		if err != nil {
			store.Close()
			return nil, nop, err
		}
		return srcs, func() { store.Close() }, nil
	}
	if prefix == "" {
		return nil, nop, fmt.Errorf("%w: a prefix must be provided with a bucket", errUsage)
	}
	store, err := a.bucketStore(ctx, bucket)
	if err != nil {
		return nil, nop, err
	}
	srcs, err := source.Objects(ctx, store, prefix, suffix)
	return srcs, nop, err
}

// dirFiles lists the regular files in dir ending in suffix, compressed
// variants included.
func dirFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && source.HasSuffix(e.Name(), suffix) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
