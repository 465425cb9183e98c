package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/archive"
	"github.com/dusk-indust/mosromgr/internal/export"
	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/source"
)

type inspectFlags struct {
	file    string
	bucket  string
	archive string
	prefix  string
	key     string

	start    bool
	end      bool
	duration bool
	stories  bool
	items    bool
	notes    bool
	body     bool
	json     bool
}

func newInspectCmd(a *app) *cobra.Command {
	var f inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the contents of a roCreate or merged running order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.inspectSource(cmd.Context(), f)
			if err != nil {
				return err
			}
			data, err := src.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			ro, err := mos.ParseRunningOrder(data)
			if err != nil {
				return fmt.Errorf("%s: file must be a roCreate: %w", src.ID(), err)
			}
			if f.json {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(export.ExportRunningOrder(ro, f.stories))
			}
			printRunningOrder(a.out, ro, f)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "the roCreate file to inspect")
	fl.StringVarP(&f.bucket, "bucket-name", "b", "", "S3 bucket containing the roCreate file")
	fl.StringVar(&f.archive, "archive", "", "archive directory containing the roCreate file")
	fl.StringVarP(&f.prefix, "prefix", "p", "", "key prefix of the roCreate file")
	fl.StringVarP(&f.key, "key", "k", "", "key of the roCreate file under the prefix")
	fl.BoolVarP(&f.start, "start-time", "t", false, "show programme start time")
	fl.BoolVarP(&f.end, "end-time", "e", false, "show programme end time")
	fl.BoolVarP(&f.duration, "duration", "d", false, "show total running order duration")
	fl.BoolVarP(&f.stories, "stories", "s", false, "show stories in the running order")
	fl.BoolVarP(&f.items, "items", "i", false, "show items within stories")
	fl.BoolVarP(&f.notes, "notes", "n", false, "show notes within story items")
	fl.BoolVar(&f.body, "body", false, "show each story's paragraphs and items in script order")
	fl.BoolVar(&f.json, "json", false, "print a JSON summary (with script text when --stories is set)")
	cmd.MarkFlagsMutuallyExclusive("file", "bucket-name", "archive")
	return cmd
}

func (a *app) inspectSource(ctx context.Context, f inspectFlags) (source.Source, error) {
	if f.file != "" {
		return source.File{Path: f.file}, nil
	}
	if f.bucket == "" && f.archive == "" {
		return nil, fmt.Errorf("%w: a file, or a bucket or archive with prefix and key, must be provided", errUsage)
	}
	if f.prefix == "" || f.key == "" {
		return nil, fmt.Errorf("%w: prefix and key must be provided with a bucket or archive", errUsage)
	}
	key := strings.TrimSuffix(f.prefix, "/") + "/" + f.key

	if f.archive != "" {
		store, err := archive.Open(f.archive)
		if err != nil {
			return nil, err
		}
		data, err := store.Get(ctx, key)
		closeErr := store.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, closeErr
		}
		return source.Bytes{Name: key, Data: data}, nil
	}

	store, err := a.bucketStore(ctx, f.bucket)
	if err != nil {
		return nil, err
	}
	return source.Object{Store: store, Key: key}, nil
}

var (
	slugStyle  = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	storyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	noteStyle  = lipgloss.NewStyle().Italic(true)
)

// printRunningOrder writes the human-readable summary. Styling only applies
// when w is a terminal.
func printRunningOrder(w io.Writer, ro *mos.RunningOrder, f inspectFlags) {
	r := lipgloss.NewRenderer(w)
	slug := slugStyle.Renderer(r)
	label := labelStyle.Renderer(r)
	story := storyStyle.Renderer(r)
	note := noteStyle.Renderer(r)

	fmt.Fprintln(w, slug.Render(ro.Slug()))
	if f.start {
		fmt.Fprintln(w, label.Render("Start time:"), timeOrUnknown(ro.StartTime()))
	}
	if f.end {
		fmt.Fprintln(w, label.Render("End time:"), timeOrUnknown(ro.EndTime()))
	}
	if f.duration {
		fmt.Fprintln(w, label.Render("Duration:"), export.FormatDuration(ro.Duration()))
	}
	fmt.Fprintln(w)
	if !f.stories {
		return
	}
	for _, s := range ro.Stories() {
		fmt.Fprintln(w, story.Render(s.Slug))
		if f.body {
			printBody(w, s, f.notes, note)
			fmt.Fprintln(w)
			continue
		}
		for _, it := range s.Items {
			switch {
			case f.items && f.notes:
				fmt.Fprintf(w, "    %s - %s\n", it.Slug, note.Render(it.Note))
			case f.items:
				fmt.Fprintf(w, "    %s\n", it.Slug)
			case f.notes && it.Note != "":
				fmt.Fprintf(w, "    Note: %s\n", note.Render(it.Note))
			}
		}
		fmt.Fprintln(w)
	}
}

// printBody writes the story's non-empty paragraphs and its items, with
// their notes when notes is set, in the order they appear in the script.
func printBody(w io.Writer, s mos.Story, notes bool, note lipgloss.Style) {
	for _, part := range s.Body() {
		if part.Item != nil {
			fmt.Fprintf(w, "    [%s]\n", part.Item.Slug)
			if notes && part.Item.Note != "" {
				fmt.Fprintf(w, "    Note: %s\n", note.Render(part.Item.Note))
			}
			continue
		}
		if text := strings.TrimSpace(part.Paragraph); text != "" {
			fmt.Fprintf(w, "    %s\n", text)
		}
	}
}

func timeOrUnknown(t time.Time, ok bool) string {
	if !ok {
		return "unknown"
	}
	return t.Format(export.TimeLayout)
}
