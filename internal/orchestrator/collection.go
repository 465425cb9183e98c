package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/source"
)

// Entry is the header of one classified source: enough to validate and
// order a collection without holding the document.
type Entry struct {
	Source    source.Source
	MessageID int
	ROID      string
	Kind      mos.Kind

	hasMessageID bool
}

// SourceError is a fatal failure to fetch or parse one source.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string { return e.Source + ": " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// Collection is a validated set of messages for one programme.
type Collection struct {
	opts  Options
	log   *slog.Logger
	runID string
	state State

	create Entry
	// deltas excludes the roCreate and is sorted by messageID.
	deltas []Entry
	diags  []mos.Diagnostic
}

// New scans srcs, classifies each one and validates that together they form
// one programme. Malformed XML and unreadable sources are fatal. Sources of
// unknown type are fatal under Strict and recorded as diagnostics under
// NonStrict. Status-only messages (roItemStat, roList) are skipped.
func New(ctx context.Context, srcs []source.Source, opts Options) (*Collection, error) {
	c := &Collection{
		opts:  opts,
		runID: uuid.NewString(),
		state: StateUnvalidated,
	}
	c.log = opts.logger().With("run", c.runID)
	c.log.Info("scanning sources", "count", len(srcs))

	results, err := scan(ctx, srcs, opts.workers(), c.emit)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, r := range results {
		switch {
		case r.err == nil:
			entries = append(entries, r.entry)
		case errors.Is(r.err, mos.ErrIgnoredType):
			c.log.Debug("ignoring status message", "source", r.entry.Source.ID(), "reason", r.err)
			c.emit(ProgressEvent{Phase: PhaseScan, Source: r.entry.Source.ID(), Status: ProgressIgnored, Message: r.err.Error()})
		case opts.Policy == Strict:
			c.emit(ProgressEvent{Phase: PhaseScan, Source: r.entry.Source.ID(), Status: ProgressFailed, Message: r.err.Error()})
			return nil, &SourceError{Source: r.entry.Source.ID(), Err: r.err}
		default:
			d := mos.Diagnostic{Err: r.err, Source: r.entry.Source.ID()}
			c.diags = append(c.diags, d)
			c.log.Warn("skipping unclassified source", "source", d.Source, "error", r.err)
			c.emit(ProgressEvent{Phase: PhaseScan, Source: d.Source, Status: ProgressSkipped, Message: r.err.Error()})
		}
	}

	if err := c.validate(entries); err != nil {
		c.state = StateInvalid
		return nil, err
	}
	c.state = StateValidated
	c.log.Info("collection validated", "ro", c.ROID(), "messages", len(c.deltas)+1)
	return c, nil
}

// FromFiles builds a collection from local paths.
func FromFiles(ctx context.Context, paths []string, opts Options) (*Collection, error) {
	return New(ctx, source.Files(paths...), opts)
}

// FromStore builds a collection from every key under prefix ending in
// suffix.
func FromStore(ctx context.Context, store source.ObjectStore, prefix, suffix string, opts Options) (*Collection, error) {
	srcs, err := source.Objects(ctx, store, prefix, suffix)
	if err != nil {
		return nil, err
	}
	return New(ctx, srcs, opts)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCollection, fmt.Sprintf(format, args...))
}

func (c *Collection) validate(entries []Entry) error {
	if len(entries) == 0 {
		return invalid("no MOS messages")
	}
	var creates, ends []Entry
	for _, e := range entries {
		if !e.hasMessageID {
			return invalid("%s has no messageID", e.Source.ID())
		}
		switch e.Kind {
		case mos.KindRunningOrder:
			creates = append(creates, e)
		case mos.KindRunningOrderEnd:
			ends = append(ends, e)
		}
	}
	if len(creates) != 1 {
		return invalid("%d roCreates found", len(creates))
	}
	c.create = creates[0]

	var mixed []string
	for _, e := range entries {
		if e.ROID != c.create.ROID {
			mixed = append(mixed, e.Source.ID())
		}
	}
	if len(mixed) > 0 {
		return invalid("mixed running order ids: %s not %q", strings.Join(mixed, ", "), c.create.ROID)
	}

	if len(ends) > 1 {
		return invalid("%d roDeletes found", len(ends))
	}
	if !c.opts.AllowIncomplete && len(ends) != 1 {
		return invalid("%d roDeletes found", len(ends))
	}

	for _, e := range entries {
		if e.Kind != mos.KindRunningOrder {
			c.deltas = append(c.deltas, e)
		}
	}
	sort.SliceStable(c.deltas, func(i, j int) bool {
		a, b := c.deltas[i], c.deltas[j]
		if a.MessageID != b.MessageID {
			return a.MessageID < b.MessageID
		}
		return a.Source.ID() < b.Source.ID()
	})
	return nil
}

// RunID identifies this collection in logs, events and notifications.
func (c *Collection) RunID() string { return c.runID }

// ROID returns the programme's running order id.
func (c *Collection) ROID() string { return c.create.ROID }

// State returns the collection's lifecycle state.
func (c *Collection) State() State { return c.state }

// Create returns the roCreate entry.
func (c *Collection) Create() Entry { return c.create }

// Deltas returns the delta entries in merge order.
func (c *Collection) Deltas() []Entry { return append([]Entry(nil), c.deltas...) }

// Len returns the number of messages to merge, including the roCreate.
func (c *Collection) Len() int { return len(c.deltas) + 1 }

// Diagnostics returns the conditions recorded while scanning.
func (c *Collection) Diagnostics() []mos.Diagnostic {
	return append([]mos.Diagnostic(nil), c.diags...)
}

func (c *Collection) emit(ev ProgressEvent) {
	if c.opts.OnProgress == nil {
		return
	}
	ev.RunID = c.runID
	c.opts.OnProgress(ev)
}
