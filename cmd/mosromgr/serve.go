package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/mosromgr/internal/api"
	"github.com/dusk-indust/mosromgr/internal/archive"
	"github.com/dusk-indust/mosromgr/internal/mcptools"
	"github.com/dusk-indust/mosromgr/internal/metrics"
	"github.com/dusk-indust/mosromgr/internal/notify"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/rograph"
	"github.com/dusk-indust/mosromgr/internal/schedule"
	"github.com/dusk-indust/mosromgr/internal/source"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP endpoint and run scheduled merges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

// services is everything serve and mcp share.
type services struct {
	graph    rograph.Store
	recorder *metrics.Recorder
	notifier notify.Notifier
	svc      *mcptools.Service
}

func (s *services) Close() {
	s.notifier.Close()
	s.graph.Close()
}

// mergeHook records a finished merge in metrics and notifications.
func (s *services) mergeHook(ctx context.Context) func(*orchestrator.Result, error, time.Duration) {
	return func(res *orchestrator.Result, err error, elapsed time.Duration) {
		s.recorder.ObserveMerge(res, err, elapsed)
		notify.Merged(ctx, s.notifier, res, err)
	}
}

func (a *app) services(ctx context.Context) (*services, error) {
	g, err := a.openGraph("")
	if err != nil {
		return nil, err
	}
	n, err := a.notifier()
	if err != nil {
		g.Close()
		return nil, err
	}
	s := &services{graph: g, recorder: metrics.NewRecorder(), notifier: n}
	s.svc = mcptools.NewService(g,
		mcptools.WithProgress(orchestrator.Tee(s.recorder.Observe, notify.FromProgress(ctx, n))),
		mcptools.WithMergeHook(s.mergeHook(ctx)),
		mcptools.WithLogger(a.log),
	)
	return s, nil
}

func (a *app) serve(ctx context.Context, addr string) error {
	s, err := a.services(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := api.NewServer(s.svc,
		api.WithGraph(s.graph),
		api.WithMetrics(s.recorder.Handler()),
		api.WithVersion(version),
	)
	runner, closeStore, err := a.scheduler(ctx, s)
	if err != nil {
		return err
	}
	defer closeStore()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, addr) })
	if runner != nil {
		g.Go(func() error {
			runner.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}

// scheduler builds a Runner for the configured jobs, reading from the
// configured bucket or, failing that, the archive. It returns nil when no
// jobs are configured.
func (a *app) scheduler(ctx context.Context, s *services) (*schedule.Runner, func(), error) {
	nop := func() {}
	if len(a.cfg.Jobs) == 0 {
		return nil, nop, nil
	}

	var store source.ObjectStore
	closeStore := nop
	switch {
	case a.cfg.S3.Bucket != "":
		st, err := a.bucketStore(ctx, "")
		if err != nil {
			return nil, nop, err
		}
		store = st
	case a.cfg.Archive != "":
		st, err := archive.Open(a.cfg.Archive)
		if err != nil {
			return nil, nop, err
		}
		store, closeStore = st, func() { st.Close() }
	default:
		return nil, nop, fmt.Errorf("%w: schedules need an S3 bucket or an archive", errUsage)
	}

	// Jobs run while the programme is still live, before its roDelete.
	opts := a.collectionOptions(true, false)
	jobs := make([]schedule.Job, len(a.cfg.Jobs))
	for i, j := range a.cfg.Jobs {
		policy := opts.Policy
		if j.Policy != "" {
			p, err := orchestrator.ParsePolicy(j.Policy)
			if err != nil {
				closeStore()
				return nil, nop, fmt.Errorf("%w: job %s: %w", errUsage, j.Name, err)
			}
			policy = p
		}
		jobs[i] = schedule.Job{Name: j.Name, Cron: j.Cron, Prefix: j.Prefix, Output: j.Output, Policy: policy}
	}
	opts.OnProgress = orchestrator.Tee(s.recorder.Observe, notify.FromProgress(ctx, s.notifier))
	hook := s.mergeHook(ctx)

	runner, err := schedule.New(store, jobs,
		schedule.WithSuffix(a.cfg.Suffix),
		schedule.WithCollectionOptions(opts),
		schedule.WithGraph(s.graph),
		schedule.WithMergeHook(func(_ schedule.Job, res *orchestrator.Result, err error, elapsed time.Duration) {
			hook(res, err, elapsed)
		}),
		schedule.WithLogger(a.log),
	)
	if err != nil {
		closeStore()
		return nil, nop, fmt.Errorf("%w: %w", errUsage, err)
	}
	return runner, closeStore, nil
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return mcptools.RunStdio(cmd.Context(), s.svc)
		},
	}
}
