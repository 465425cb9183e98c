package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/source"
)

// scanResult holds the header of one source after the scan fan-out. The
// parsed document itself is dropped; it is fetched again at merge time.
type scanResult struct {
	entry Entry
	// err is a classification error (unknown or ignored type). Fetch and
	// parse failures abort the scan instead.
	err error
}

// scan fetches and classifies every source in parallel, at most workers at
// a time. Results are position-indexed so the output order matches srcs. The
// first fetch or malformed-XML failure cancels the remaining fetches.
func scan(ctx context.Context, srcs []source.Source, workers int, emit func(ProgressEvent)) ([]scanResult, error) {
	results := make([]scanResult, len(srcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, src := range srcs {
		emit(ProgressEvent{Phase: PhaseScan, Source: src.ID(), Status: ProgressPending})

		g.Go(func() error {
			data, err := src.Fetch(gctx)
			if err != nil {
				emit(ProgressEvent{Phase: PhaseScan, Source: src.ID(), Status: ProgressFailed, Message: err.Error()})
				return &SourceError{Source: src.ID(), Err: err}
			}
			msg, err := mos.Parse(data)
			if err != nil {
				if mos.IsFatal(err) {
					emit(ProgressEvent{Phase: PhaseScan, Source: src.ID(), Status: ProgressFailed, Message: err.Error()})
					return &SourceError{Source: src.ID(), Err: err}
				}
				results[i] = scanResult{entry: Entry{Source: src}, err: err}
				return nil
			}
			results[i] = scanResult{entry: Entry{
				Source:       src,
				MessageID:    msg.MessageID(),
				hasMessageID: msg.HasMessageID(),
				ROID:         msg.ROID(),
				Kind:         msg.Kind(),
			}}
			emit(ProgressEvent{
				Phase:     PhaseScan,
				Source:    src.ID(),
				MessageID: msg.MessageID(),
				Kind:      msg.Kind(),
				Status:    ProgressClassified,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fetched is one message materialized ahead of the merge cursor.
type fetched struct {
	msg *mos.Message
	err error
}

// prefetcher re-materializes entries in order, keeping at most depth
// messages fetched but not yet consumed.
type prefetcher struct {
	slots  []chan fetched
	sem    chan struct{}
	cancel context.CancelFunc
	g      *errgroup.Group
}

func startPrefetch(ctx context.Context, entries []Entry, depth int) *prefetcher {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	p := &prefetcher{
		slots:  make([]chan fetched, len(entries)),
		sem:    make(chan struct{}, depth),
		cancel: cancel,
		g:      g,
	}
	for i := range p.slots {
		p.slots[i] = make(chan fetched, 1)
	}

	g.Go(func() error {
		for i, e := range entries {
			select {
			case p.sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			g.Go(func() error {
				p.slots[i] <- materialize(gctx, e.Source)
				return nil
			})
		}
		return nil
	})
	return p
}

func materialize(ctx context.Context, src source.Source) fetched {
	data, err := src.Fetch(ctx)
	if err != nil {
		return fetched{err: err}
	}
	msg, err := mos.Parse(data)
	return fetched{msg: msg, err: err}
}

// next blocks until entry i has been fetched and frees its read-ahead slot.
func (p *prefetcher) next(ctx context.Context, i int) (*mos.Message, error) {
	select {
	case f := <-p.slots[i]:
		<-p.sem
		return f.msg, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stop cancels outstanding fetches and waits for them to finish.
func (p *prefetcher) stop() {
	p.cancel()
	_ = p.g.Wait()
}
