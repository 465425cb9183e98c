package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/source"
)

func newDetectCmd(a *app) *cobra.Command {
	var bucket, dir, prefix, suffix string
	cmd := &cobra.Command{
		Use:   "detect [FILE...]",
		Short: "Detect the MOS type of files, or of the objects under a bucket or archive prefix",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fromStore := bucket != "" || dir != "" || prefix != ""
			switch {
			case len(args) > 0 && fromStore:
				return fmt.Errorf("%w: give files or a bucket or archive prefix, not both", errUsage)
			case len(args) > 0:
				for _, src := range source.Files(args...) {
					fmt.Fprintln(a.out, detectLine(ctx, src))
				}
				return nil
			case !fromStore:
				return fmt.Errorf("%w: files, or a bucket or archive with a prefix, must be provided", errUsage)
			}

			if suffix == "" {
				suffix = a.cfg.Suffix
			}
			srcs, cleanup, err := a.storeSources(ctx, bucket, dir, prefix, suffix)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, src := range srcs {
				fmt.Fprintln(a.out, detectLine(ctx, src))
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&bucket, "bucket-name", "b", "", "S3 bucket containing MOS files")
	fl.StringVar(&dir, "archive", "", "archive directory containing MOS files")
	fl.StringVarP(&prefix, "prefix", "p", "", "key prefix of the MOS files")
	fl.StringVar(&suffix, "suffix", "", "key suffix of the MOS files (default from config, .mos.xml)")
	cmd.MarkFlagsMutuallyExclusive("bucket-name", "archive")
	return cmd
}

// detectLine classifies one source. Failures are reported in the line so a
// bad file never stops the batch; ignored status messages say so.
func detectLine(ctx context.Context, src source.Source) string {
	id := src.ID()
	data, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Sprintf("%s: %v", id, err)
	}
	m, err := mos.Parse(data)
	switch {
	case errors.Is(err, mos.ErrInvalidXML):
		return id + ": Invalid XML"
	case errors.Is(err, mos.ErrIgnoredType):
		return id + ": Ignored MOS file type"
	case err != nil:
		return id + ": Unknown MOS file type"
	case m.Completed():
		return fmt.Sprintf("%s: %s (completed)", id, m.Kind())
	default:
		return fmt.Sprintf("%s: %s", id, m.Kind())
	}
}
