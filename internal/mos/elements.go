package mos

import (
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

// Item is a read-only view of an <item> element within a story.
type Item struct {
	ID       string
	Slug     string
	Type     string
	ObjectID string
	MOSID    string
	Note     string

	// Duration in seconds, from objDur/objTB. HasDuration is false when the
	// item does not carry both.
	Duration    float64
	HasDuration bool

	elem *etree.Element
}

// Element returns the underlying <item> element.
func (i Item) Element() *etree.Element { return i.elem }

func newItem(e *etree.Element) Item {
	it := Item{
		ID:       mosxml.IDOf(e),
		Slug:     mosxml.ChildText(e, "itemSlug"),
		Type:     mosxml.ChildText(e, "objType"),
		ObjectID: mosxml.ChildText(e, "objID"),
		MOSID:    mosxml.ChildText(e, "mosID"),
		elem:     e,
	}
	if note := e.FindElement("./mosExternalMetadata/mosPayload//studioCommand[@type='note']/text"); note != nil {
		it.Note = strings.TrimSpace(note.Text())
	}
	dur, errDur := strconv.ParseFloat(mosxml.ChildText(e, "objDur"), 64)
	tb, errTB := strconv.ParseFloat(mosxml.ChildText(e, "objTB"), 64)
	if errDur == nil && errTB == nil && tb > 0 {
		it.Duration = dur / tb
		it.HasDuration = true
	}
	return it
}

// BodyPart is one entry of a story body: a paragraph or an item.
type BodyPart struct {
	Paragraph string
	Item      *Item
}

// Story is a read-only view of a <story> element. Offset and start time are
// only known for stories read through a RunningOrder.
type Story struct {
	ID    string
	Slug  string
	Items []Item

	// Duration in seconds: StoryDuration, else TextTime + MediaTime from the
	// story payload, else the sum of item durations.
	Duration    float64
	HasDuration bool

	// Offset in seconds from the start of the programme.
	Offset    float64
	HasOffset bool

	// Start and End are zero when unknown.
	Start time.Time
	End   time.Time

	elem *etree.Element
}

// Element returns the underlying <story> element.
func (s Story) Element() *etree.Element { return s.elem }

// NewStory builds a Story view of a <story> element with no programme
// context.
func NewStory(e *etree.Element) Story {
	s := Story{
		ID:   mosxml.IDOf(e),
		Slug: mosxml.ChildText(e, "storySlug"),
		elem: e,
	}
	for _, ie := range e.SelectElements("item") {
		s.Items = append(s.Items, newItem(ie))
	}
	s.Duration, s.HasDuration = storyDuration(e, s.Items)
	if t, ok := parseTime(payloadText(e, "StoryStarted")); ok {
		s.Start = t
	}
	if t, ok := parseTime(payloadText(e, "StoryEnded")); ok {
		s.End = t
	}
	return s
}

// withOffset fills in the programme-relative fields.
func (s Story) withOffset(offset float64, progStart time.Time) Story {
	s.Offset = offset
	s.HasOffset = true
	if s.Start.IsZero() && !progStart.IsZero() {
		s.Start = progStart.Add(seconds(offset))
	}
	if s.End.IsZero() && !s.Start.IsZero() && s.HasDuration {
		s.End = s.Start.Add(seconds(s.Duration))
	}
	return s
}

// Script returns the non-empty paragraph texts of the story, excluding
// technical notes wrapped in round or angle brackets.
func (s Story) Script() []string {
	var out []string
	for _, p := range s.elem.SelectElements("p") {
		text := strings.TrimSpace(p.Text())
		if text == "" || isTechnicalNote(text) {
			continue
		}
		out = append(out, text)
	}
	return out
}

// Body returns paragraphs and items in document order. Empty paragraphs are
// kept as empty strings.
func (s Story) Body() []BodyPart {
	var out []BodyPart
	for _, c := range s.elem.ChildElements() {
		switch c.Tag {
		case "p":
			out = append(out, BodyPart{Paragraph: c.Text()})
		case "item":
			it := newItem(c)
			out = append(out, BodyPart{Item: &it})
		}
	}
	return out
}

func isTechnicalNote(text string) bool {
	return (strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")")) ||
		(strings.HasPrefix(text, "<") && strings.HasSuffix(text, ">"))
}

func storyDuration(e *etree.Element, items []Item) (float64, bool) {
	if d, err := strconv.ParseFloat(payloadText(e, "StoryDuration"), 64); err == nil {
		return d, true
	}
	text, errText := strconv.ParseFloat(payloadText(e, "TextTime"), 64)
	media, errMedia := strconv.ParseFloat(payloadText(e, "MediaTime"), 64)
	if errText == nil || errMedia == nil {
		var total float64
		if errText == nil {
			total += text
		}
		if errMedia == nil {
			total += media
		}
		return total, true
	}
	var total float64
	found := false
	for _, it := range items {
		if it.HasDuration {
			total += it.Duration
			found = true
		}
	}
	return total, found
}

// payloadText returns the text of a field in the element's first
// mosExternalMetadata/mosPayload block.
func payloadText(e *etree.Element, field string) string {
	f := e.FindElement("./mosExternalMetadata/mosPayload/" + field)
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.Text())
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseTime accepts the ISO-8601 variants newsroom systems emit. Timestamps
// without a zone are read as UTC.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
