package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dusk-indust/mosromgr/internal/source"
)

func mosDoc(id int, body string) string {
	return fmt.Sprintf(`<mos><mosID>mos.test</mosID><ncsID>ncs.test</ncsID><messageID>%d</messageID>%s</mos>`, id, body)
}

func story(id string, items ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<story><storyID>%s</storyID><storySlug>%s</storySlug>`, id, strings.ToLower(id))
	for _, it := range items {
		fmt.Fprintf(&b, `<item><itemID>%s</itemID><objID>o-%s</objID></item>`, it, it)
	}
	b.WriteString(`</story>`)
	return b.String()
}

func roCreate(id int, roID string, stories ...string) source.Source {
	return doc(id, fmt.Sprintf(`<roCreate><roID>%s</roID><roSlug>Evening</roSlug>%s</roCreate>`, roID, strings.Join(stories, "")))
}

func roMsg(id int, tag, body string) source.Source {
	return doc(id, fmt.Sprintf(`<%s><roID>RO1</roID>%s</%s>`, tag, body, tag))
}

func roDelete(id int) source.Source { return roMsg(id, "roDelete", "") }

func doc(id int, body string) source.Source {
	return source.Bytes{Name: fmt.Sprintf("%04d.mos.xml", id), Data: []byte(mosDoc(id, body))}
}

// programme is a complete RO1 running order: S1..S3 created, S4 inserted
// before S2, I1 deleted from S1, S3 moved before S1, then ended. Merged it
// reads S3, S1, S4, S2.
func programme() []source.Source {
	return []source.Source{
		roCreate(10, "RO1", story("S1", "I1", "I2"), story("S2"), story("S3")),
		roMsg(11, "roStoryInsert", `<storyID>S2</storyID>`+story("S4")),
		roMsg(12, "roItemDelete", `<storyID>S1</storyID><itemID>I1</itemID>`),
		roMsg(13, "roStoryMove", `<storyID>S3</storyID><storyID>S1</storyID>`),
		roDelete(14),
	}
}

// countingSource records concurrent and total fetches.
type countingSource struct {
	source.Source
	inflight *atomic.Int32
	peak     *atomic.Int32
	total    *atomic.Int32
	gate     <-chan struct{}
}

func (c countingSource) Fetch(ctx context.Context) ([]byte, error) {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	c.total.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.Source.Fetch(ctx)
}

// failingSource fails to fetch.
type failingSource struct{ id string }

func (f failingSource) ID() string { return f.id }
func (f failingSource) Fetch(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("fetch %s: connection reset", f.id)
}

// eventLog collects progress events safely across goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(phase Phase, status ProgressStatus) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Phase == phase && ev.Status == status {
			n++
		}
	}
	return n
}
