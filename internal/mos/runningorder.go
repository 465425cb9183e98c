package mos

import (
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

// metaTag holds bookkeeping added by the merge engine: the merged roDelete,
// which marks a completed running order, and the last roAir status.
const metaTag = "mosromgrmeta"

// completedPath finds the merged roDelete from the document root.
const completedPath = metaTag + "/roDelete"

// RunningOrder is the document deltas are merged into. It owns its tree
// exclusively; callers must not share one RunningOrder between goroutines.
type RunningOrder struct {
	msg *Message
}

// NewRunningOrder takes ownership of a roCreate message.
func NewRunningOrder(m *Message) (*RunningOrder, error) {
	if m == nil || m.kind != KindRunningOrder {
		kind := KindUnknown
		if m != nil {
			kind = m.kind
		}
		return nil, fmt.Errorf("mos: running order requires roCreate, got %s", kind)
	}
	return &RunningOrder{msg: m}, nil
}

// ParseRunningOrder parses data and returns it as a RunningOrder.
func ParseRunningOrder(data []byte) (*RunningOrder, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewRunningOrder(m)
}

// base returns the current roCreate element. It is looked up on every call
// because RunningOrderReplace swaps it out.
func (ro *RunningOrder) base() *etree.Element {
	return ro.msg.doc.Root().SelectElement("roCreate")
}

func (ro *RunningOrder) root() *etree.Element { return ro.msg.doc.Root() }

// ROID returns the running order id.
func (ro *RunningOrder) ROID() string { return mosxml.ChildText(ro.base(), "roID") }

// MessageID returns the messageID of the roCreate that seeded the document.
func (ro *RunningOrder) MessageID() int { return ro.msg.messageID }

// Slug returns the running order slug.
func (ro *RunningOrder) Slug() string { return mosxml.ChildText(ro.base(), "roSlug") }

// StartTime returns the editorial start time (roEdStart), if parseable.
func (ro *RunningOrder) StartTime() (time.Time, bool) {
	return parseTime(mosxml.ChildText(ro.base(), "roEdStart"))
}

// Completed reports whether a RunningOrderEnd has been merged.
func (ro *RunningOrder) Completed() bool {
	return ro.root().FindElement(completedPath) != nil
}

// AirStatus returns the roAir value of the last merged ReadyToAir, or "".
// It is kept in the document so it survives serialization.
func (ro *RunningOrder) AirStatus() string {
	return mosxml.ChildText(ro.root().SelectElement(metaTag), "roAir")
}

// meta returns the bookkeeping element, creating it when absent.
func (ro *RunningOrder) meta() *etree.Element {
	if m := ro.root().SelectElement(metaTag); m != nil {
		return m
	}
	return ro.root().CreateElement(metaTag)
}

// Stories returns the stories in running order, with offsets and start
// times computed from the programme start.
func (ro *RunningOrder) Stories() []Story {
	start, _ := ro.StartTime()
	elems := ro.base().SelectElements("story")
	out := make([]Story, 0, len(elems))
	var offset float64
	for _, e := range elems {
		s := NewStory(e).withOffset(offset, start)
		offset += s.Duration
		out = append(out, s)
	}
	return out
}

// Story returns the story addressed by id.
func (ro *RunningOrder) Story(id string) (Story, bool) {
	for _, s := range ro.Stories() {
		if mosxml.MatchID(s.ID, id) {
			return s, true
		}
	}
	return Story{}, false
}

// Duration returns the total of all story durations in seconds.
func (ro *RunningOrder) Duration() float64 {
	var total float64
	for _, s := range ro.Stories() {
		total += s.Duration
	}
	return total
}

// EndTime returns the end time of the final story, when known.
func (ro *RunningOrder) EndTime() (time.Time, bool) {
	stories := ro.Stories()
	if len(stories) == 0 {
		return time.Time{}, false
	}
	end := stories[len(stories)-1].End
	return end, !end.IsZero()
}

// Document returns the underlying tree.
func (ro *RunningOrder) Document() *etree.Document { return ro.msg.doc }

// XML serializes the running order.
func (ro *RunningOrder) XML() ([]byte, error) { return ro.msg.XML() }

// WriteTo writes the serialized running order to w.
func (ro *RunningOrder) WriteTo(w io.Writer) (int64, error) {
	b, err := ro.XML()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// CheckUnique reports the first duplicate story id, or duplicate item id
// within a story, as an ErrDuplicate error.
func (ro *RunningOrder) CheckUnique() error {
	seen := make(map[string]bool)
	for _, s := range ro.base().SelectElements("story") {
		id := mosxml.IDOf(s)
		if seen[id] {
			return fmt.Errorf("%w: story %s", ErrDuplicate, id)
		}
		seen[id] = true
		items := make(map[string]bool)
		for _, it := range s.SelectElements("item") {
			iid := mosxml.IDOf(it)
			if items[iid] {
				return fmt.Errorf("%w: item %s in story %s", ErrDuplicate, iid, id)
			}
			items[iid] = true
		}
	}
	return nil
}
