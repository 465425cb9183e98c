package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/mosromgr/internal/mos"
)

// Merge seeds a running order from the roCreate and applies every other
// message in messageID order. Fetching runs ahead of the merge cursor;
// application is sequential.
//
// Fatal conditions return an error and no result. Under Strict the first
// recoverable condition aborts with an error wrapping ErrAborted and the
// diagnostic; the partial Result is returned alongside it. Under NonStrict
// the offending message is skipped and the merge carries on.
//
// Every call re-applies the same ordered sources from a freshly fetched
// roCreate, so merging again after a success or a failure gives the same
// document. Merge must not be called concurrently on one Collection.
func (c *Collection) Merge(ctx context.Context) (*Result, error) {
	switch c.state {
	case StateValidated, StateMerged, StateFailed:
	default:
		return nil, fmt.Errorf("orchestrator: cannot merge a %s collection", c.state)
	}
	c.state = StateMerging

	ro, err := c.seed(ctx)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}

	res := &Result{
		RunID:        c.runID,
		RunningOrder: ro,
		Diagnostics:  c.Diagnostics(),
	}
	c.log.Info("merging", "ro", c.ROID(), "deltas", len(c.deltas), "policy", c.opts.Policy)

	pf := startPrefetch(ctx, c.deltas, c.opts.readAhead())
	defer pf.stop()

	for i, e := range c.deltas {
		msg, err := pf.next(ctx, i)
		if err != nil {
			c.state = StateFailed
			c.emitFor(e, ProgressFailed, err.Error())
			return nil, &SourceError{Source: e.Source.ID(), Err: err}
		}

		diags, err := mos.Apply(ro, msg)
		if err != nil {
			c.state = StateFailed
			c.emitFor(e, ProgressFailed, err.Error())
			c.log.Error("merge failed", "source", e.Source.ID(), "error", err)
			return nil, fmt.Errorf("orchestrator: %s: %w", e.Source.ID(), err)
		}
		if len(diags) == 0 {
			res.Applied++
			c.emitFor(e, ProgressApplied, "")
			c.log.Debug("merged", "kind", e.Kind, "message", e.MessageID)
			continue
		}

		for j := range diags {
			diags[j].Source = e.Source.ID()
		}
		res.Diagnostics = append(res.Diagnostics, diags...)
		res.Skipped++
		c.emitFor(e, ProgressSkipped, diags[0].Error())

		if c.opts.Policy == Strict {
			c.state = StateFailed
			c.log.Error("strict merge aborted", "error", diags[0])
			return res, fmt.Errorf("%w: %w", ErrAborted, diags[0])
		}
		for _, d := range diags {
			c.log.Warn("skipped message", "code", d.Code(), "error", d)
		}
	}

	c.state = StateMerged
	c.log.Info("merge complete", "ro", c.ROID(), "applied", res.Applied, "skipped", res.Skipped, "completed", ro.Completed())
	return res, nil
}

func (c *Collection) seed(ctx context.Context) (*mos.RunningOrder, error) {
	data, err := c.create.Source.Fetch(ctx)
	if err != nil {
		return nil, &SourceError{Source: c.create.Source.ID(), Err: err}
	}
	ro, err := mos.ParseRunningOrder(data)
	if err != nil {
		return nil, &SourceError{Source: c.create.Source.ID(), Err: err}
	}
	c.emitFor(c.create, ProgressApplied, "")
	return ro, nil
}

func (c *Collection) emitFor(e Entry, status ProgressStatus, message string) {
	c.emit(ProgressEvent{
		Phase:     PhaseMerge,
		Source:    e.Source.ID(),
		MessageID: e.MessageID,
		Kind:      e.Kind,
		Status:    status,
		Message:   message,
	})
}

// IsFatal reports whether err from New or Merge is a fatal domain error:
// an invalid collection, malformed XML, an unclassifiable source under
// Strict, a programme mismatch, a merge into a completed running order or a
// strict abort.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidCollection) ||
		errors.Is(err, ErrAborted) ||
		errors.Is(err, mos.ErrUnknownType) ||
		mos.IsFatal(err)
}
