package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/mosromgr/internal/config"
	"github.com/dusk-indust/mosromgr/internal/notify"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/source"
)

// app carries what every subcommand shares once the root command has
// loaded configuration.
type app struct {
	out    io.Writer
	errOut io.Writer

	configDir string
	logLevel  string
	logFormat string

	cfg *config.ProjectConfig
	log *slog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mosromgr",
		Short: "Manage MOS running orders",
		Long: `mosromgr classifies MOS messages, merges a running order's roCreate with
its deltas into the final running order, and serves the same operations
over HTTP and MCP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", ".", "directory holding mosromgr.yml and .env")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newDetectCmd(a),
		newInspectCmd(a),
		newMergeCmd(a),
		newArchiveCmd(a),
		newIndexCmd(a),
		newDiagramCmd(a),
		newStoriesCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and installs the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	log, err := setupLogging(a.errOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	slog.SetDefault(log)
	a.cfg = cfg
	a.log = log
	return nil
}

func setupLogging(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// collectionOptions builds merge options from configuration.
func (a *app) collectionOptions(allowIncomplete, nonStrict bool) orchestrator.Options {
	opts := orchestrator.Options{
		AllowIncomplete: allowIncomplete,
		Workers:         a.cfg.Workers,
		ReadAhead:       a.cfg.ReadAhead,
		Logger:          a.log,
	}
	if nonStrict || a.cfg.NonStrict {
		opts.Policy = orchestrator.NonStrict
	}
	return opts
}

// bucketStore opens bucket (the configured one when empty) with the
// configured request rate limit.
func (a *app) bucketStore(ctx context.Context, bucket string) (source.ObjectStore, error) {
	if bucket == "" {
		bucket = a.cfg.S3.Bucket
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: no bucket given", errUsage)
	}
	s3, err := source.NewS3Store(ctx, bucket, source.S3Options{
		Region:   a.cfg.S3.Region,
		Endpoint: a.cfg.S3.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	a.log.Debug("using bucket", "bucket", bucket, "rps", a.cfg.S3.RPS)
	return source.Throttle(s3, a.cfg.S3.RPS, a.cfg.S3.Burst), nil
}

// notifier publishes to NATS when a URL is configured and logs otherwise.
func (a *app) notifier() (notify.Notifier, error) {
	if a.cfg.NATS.URL == "" {
		return notify.LogNotifier{Logger: a.log}, nil
	}
	n, err := notify.Connect(a.cfg.NATS.URL, a.cfg.NATS.Subject)
	if err != nil {
		return nil, err
	}
	a.log.Info("publishing notifications", "url", a.cfg.NATS.URL, "subject", n.Subject(notify.LevelError))
	return n, nil
}
