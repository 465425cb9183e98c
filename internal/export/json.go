// Package export renders merged running orders for people and tools: a JSON
// summary and a Mermaid diagram of the graph index.
package export

import (
	"fmt"
	"time"

	"github.com/dusk-indust/mosromgr/internal/mos"
)

// TimeLayout is how start and end times are rendered.
const TimeLayout = "2006-01-02 15:04"

// RunningOrderExport is the top-level JSON summary of a running order.
type RunningOrderExport struct {
	ID        string        `json:"id"`
	Slug      string        `json:"slug"`
	MessageID int           `json:"messageId"`
	Start     string        `json:"start,omitempty"`
	End       string        `json:"end,omitempty"`
	Duration  string        `json:"duration"`
	Completed bool          `json:"completed"`
	AirStatus string        `json:"airStatus,omitempty"`
	Stories   []StoryExport `json:"stories"`
}

// StoryExport describes one story.
type StoryExport struct {
	ID       string       `json:"id"`
	Slug     string       `json:"slug"`
	Offset   string       `json:"offset,omitempty"`
	Start    string       `json:"start,omitempty"`
	End      string       `json:"end,omitempty"`
	Duration string       `json:"duration,omitempty"`
	Script   []string     `json:"script,omitempty"`
	Items    []ItemExport `json:"items,omitempty"`
}

// ItemExport describes one item.
type ItemExport struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	ObjectID string `json:"objectId,omitempty"`
	Type     string `json:"type,omitempty"`
	Duration string `json:"duration,omitempty"`
	Note     string `json:"note,omitempty"`
}

// ExportRunningOrder builds a RunningOrderExport. Script text is included
// only when withScript is set.
func ExportRunningOrder(ro *mos.RunningOrder, withScript bool) *RunningOrderExport {
	out := &RunningOrderExport{
		ID:        ro.ROID(),
		Slug:      ro.Slug(),
		MessageID: ro.MessageID(),
		Duration:  FormatDuration(ro.Duration()),
		Completed: ro.Completed(),
		AirStatus: ro.AirStatus(),
		Stories:   []StoryExport{},
	}
	if t, ok := ro.StartTime(); ok {
		out.Start = formatTime(t)
	}
	if t, ok := ro.EndTime(); ok {
		out.End = formatTime(t)
	}

	for _, s := range ro.Stories() {
		se := StoryExport{
			ID:    s.ID,
			Slug:  s.Slug,
			Start: formatTime(s.Start),
			End:   formatTime(s.End),
		}
		if s.HasOffset {
			se.Offset = FormatDuration(s.Offset)
		}
		if s.HasDuration {
			se.Duration = FormatDuration(s.Duration)
		}
		if withScript {
			se.Script = s.Script()
		}
		for _, it := range s.Items {
			ie := ItemExport{
				ID:       it.ID,
				Slug:     it.Slug,
				ObjectID: it.ObjectID,
				Type:     it.Type,
				Note:     it.Note,
			}
			if it.HasDuration {
				ie.Duration = FormatDuration(it.Duration)
			}
			se.Items = append(se.Items, ie)
		}
		out.Stories = append(out.Stories, se)
	}
	return out
}

// FormatDuration renders seconds as H:MM:SS, rounding to the nearest second.
func FormatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	neg := ""
	if d < 0 {
		neg, d = "-", -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%s%d:%02d:%02d", neg, h, m, d/time.Second)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
