package mos

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

const testROID = "RO1"

// envelope wraps body in a <mos> root with the given messageID.
func envelope(id int, body string) string {
	return fmt.Sprintf(`<mos><mosID>mos.test</mosID><ncsID>ncs.test</ncsID><messageID>%d</messageID>%s</mos>`, id, body)
}

func itemXML(id string) string {
	return fmt.Sprintf(`<item><itemID>%s</itemID><itemSlug>slug %s</itemSlug><objID>obj-%s</objID><mosID>mos.test</mosID><objDur>250</objDur><objTB>25</objTB></item>`, id, id, id)
}

// storyXML builds a story holding the given items, with a StoryDuration of
// 30 seconds.
func storyXML(id string, items ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<story><storyID>%s</storyID><storySlug>slug %s</storySlug>`, id, id)
	b.WriteString(`<mosExternalMetadata><mosPayload><StoryDuration>30</StoryDuration></mosPayload></mosExternalMetadata>`)
	for _, it := range items {
		b.WriteString(itemXML(it))
	}
	b.WriteString(`</story>`)
	return b.String()
}

func createXML(id int, stories ...string) string {
	return envelope(id, fmt.Sprintf(`<roCreate><roID>%s</roID><roSlug>Six O'Clock</roSlug><roEdStart>2024-01-02T18:00:00</roEdStart>%s</roCreate>`,
		testROID, strings.Join(stories, "")))
}

// roBody wraps body in a tag carrying the test roID.
func roBody(id int, tag, body string) string {
	return envelope(id, fmt.Sprintf(`<%s><roID>%s</roID>%s</%s>`, tag, testROID, body, tag))
}

func elementAction(id int, op, target, source string) string {
	return envelope(id, fmt.Sprintf(`<roElementAction operation=%q><roID>%s</roID>%s%s</roElementAction>`,
		op, testROID, target, source))
}

func target(ids ...string) string {
	return `<element_target>` + idTags(ids...) + `</element_target>`
}

func source(inner string) string {
	return `<element_source>` + inner + `</element_source>`
}

// idTags renders alternating storyID/itemID pairs, e.g. idTags("storyID",
// "S1", "itemID", "I1").
func idTags(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "<%s>%s</%s>", pairs[i], pairs[i+1], pairs[i])
	}
	return b.String()
}

func mustParse(t *testing.T, xml string) *Message {
	t.Helper()
	m, err := Parse([]byte(xml))
	require.NoError(t, err)
	return m
}

func newRO(t *testing.T, stories ...string) *RunningOrder {
	t.Helper()
	ro, err := ParseRunningOrder([]byte(createXML(1, stories...)))
	require.NoError(t, err)
	return ro
}

// apply merges xml into ro and requires a clean merge.
func apply(t *testing.T, ro *RunningOrder, xml string) {
	t.Helper()
	diags, err := Apply(ro, mustParse(t, xml))
	require.NoError(t, err)
	require.Empty(t, diags)
}

func storyIDs(ro *RunningOrder) []string {
	var ids []string
	for _, s := range ro.Stories() {
		ids = append(ids, s.ID)
	}
	return ids
}

func itemIDs(t *testing.T, ro *RunningOrder, storyID string) []string {
	t.Helper()
	s, ok := ro.Story(storyID)
	require.True(t, ok, "story %s", storyID)
	var ids []string
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func serialized(t *testing.T, ro *RunningOrder) string {
	t.Helper()
	b, err := ro.XML()
	require.NoError(t, err)
	return string(b)
}

// reparse checks that the serialized running order is well-formed.
func reparse(t *testing.T, ro *RunningOrder) *RunningOrder {
	t.Helper()
	b, err := ro.XML()
	require.NoError(t, err)
	_, err = mosxml.Parse(b)
	require.NoError(t, err)
	out, err := ParseRunningOrder(b)
	require.NoError(t, err)
	return out
}
