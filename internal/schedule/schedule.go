// Package schedule re-merges running orders from an object store on cron
// schedules and writes each result to disk.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/rograph"
	"github.com/dusk-indust/mosromgr/internal/source"
)

// Job merges every message under Prefix and writes the running order to
// Output.
type Job struct {
	Name   string
	Cron   string
	Prefix string
	Output string
	Policy orchestrator.Policy
}

// Runner owns a set of jobs.
type Runner struct {
	store   source.ObjectStore
	jobs    []Job
	suffix  string
	opts    orchestrator.Options
	graph   rograph.Store
	onMerge func(Job, *orchestrator.Result, error, time.Duration)
	log     *slog.Logger

	nextTick func(expr string, after time.Time) (time.Time, error)
	retry    time.Duration

	mu      sync.Mutex
	running map[string]bool
	// inflight tracks merges started by loop.
	inflight sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithSuffix selects which keys under a prefix are messages.
func WithSuffix(s string) Option { return func(r *Runner) { r.suffix = s } }

// WithCollectionOptions is used for every merge.
func WithCollectionOptions(o orchestrator.Options) Option {
	return func(r *Runner) { r.opts = o }
}

// WithGraph indexes every successfully merged running order.
func WithGraph(g rograph.Store) Option { return func(r *Runner) { r.graph = g } }

// WithMergeHook is called after every run with its outcome and how long it
// took.
func WithMergeHook(fn func(Job, *orchestrator.Result, error, time.Duration)) Option {
	return func(r *Runner) { r.onMerge = fn }
}

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// New validates every job's cron expression.
func New(store source.ObjectStore, jobs []Job, opts ...Option) (*Runner, error) {
	g := gronx.New()
	for _, j := range jobs {
		if j.Name == "" || j.Prefix == "" || j.Output == "" {
			return nil, fmt.Errorf("schedule: job %q needs a name, prefix and output", j.Name)
		}
		if !g.IsValid(j.Cron) {
			return nil, fmt.Errorf("schedule: job %q: invalid cron expression %q", j.Name, j.Cron)
		}
	}
	r := &Runner{
		store:  store,
		jobs:   jobs,
		suffix: ".mos.xml",
		log:    slog.Default(),
		nextTick: func(expr string, after time.Time) (time.Time, error) {
			return gronx.NextTickAfter(expr, after, false)
		},
		retry:   30 * time.Second,
		running: make(map[string]bool),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("component", "schedule")
	return r, nil
}

// Run schedules every job and blocks until ctx is cancelled and every merge
// it started has returned.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range r.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			r.loop(ctx, j)
		}(j)
	}
	r.log.Info("schedules started", "jobs", len(r.jobs))
	wg.Wait()
	r.inflight.Wait()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	for {
		next, err := r.nextTick(j.Cron, time.Now())
		wait := time.Until(next)
		if err != nil {
			r.log.Error("next tick failed", "job", j.Name, "cron", j.Cron, "error", err)
			wait = r.retry
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err == nil {
			// A merge can outlast the cron interval; the next due time is
			// still honoured and tick skips it while this one runs.
			r.inflight.Add(1)
			go func() {
				defer r.inflight.Done()
				r.tick(ctx, j)
			}()
		}
	}
}

// tick runs j unless a previous run of it is still going.
func (r *Runner) tick(ctx context.Context, j Job) {
	r.mu.Lock()
	if r.running[j.Name] {
		r.mu.Unlock()
		r.log.Warn("previous run still going, skipping tick", "job", j.Name)
		return
	}
	r.running[j.Name] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running[j.Name] = false
		r.mu.Unlock()
	}()

	if err := r.RunOnce(ctx, j); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Error("scheduled merge failed", "job", j.Name, "error", err)
	}
}

// RunOnce merges j's prefix now and writes the result.
func (r *Runner) RunOnce(ctx context.Context, j Job) (err error) {
	var res *orchestrator.Result
	start := time.Now()
	if r.onMerge != nil {
		defer func() { r.onMerge(j, res, err, time.Since(start)) }()
	}

	opts := r.opts
	opts.Policy = j.Policy
	c, err := orchestrator.FromStore(ctx, r.store, j.Prefix, r.suffix, opts)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	res, err = c.Merge(ctx)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}

	data, err := res.RunningOrder.XML()
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if err := writeFile(j.Output, data); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if r.graph != nil {
		if _, err := rograph.Index(ctx, r.graph, res.RunningOrder); err != nil {
			return fmt.Errorf("job %s: index: %w", j.Name, err)
		}
	}
	r.log.Info("scheduled merge written",
		"job", j.Name, "ro", res.RunningOrder.ROID(), "output", j.Output,
		"applied", res.Applied, "skipped", res.Skipped, "elapsed", time.Since(start))
	return nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mosromgr-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
