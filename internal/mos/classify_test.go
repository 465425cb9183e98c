package mos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_SimpleKinds(t *testing.T) {
	tests := []struct {
		tag  string
		want Kind
	}{
		{"roCreate", KindRunningOrder},
		{"roStorySend", KindStorySend},
		{"roStoryAppend", KindStoryAppend},
		{"roStoryDelete", KindStoryDelete},
		{"roStoryInsert", KindStoryInsert},
		{"roStoryMove", KindStoryMove},
		{"roStoryReplace", KindStoryReplace},
		{"roItemDelete", KindItemDelete},
		{"roItemInsert", KindItemInsert},
		{"roItemMoveMultiple", KindItemMoveMultiple},
		{"roItemReplace", KindItemReplace},
		{"roReplace", KindRunningOrderReplace},
		{"roMetadataReplace", KindMetaDataReplace},
		{"roReadyToAir", KindReadyToAir},
		{"roDelete", KindRunningOrderEnd},
		{"roCtrl", KindRunningOrderControl},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			m := mustParse(t, roBody(7, tt.tag, ""))
			assert.Equal(t, tt.want, m.Kind())
			assert.Equal(t, 7, m.MessageID())
			assert.True(t, m.HasMessageID())
			assert.Equal(t, testROID, m.ROID())
			assert.Equal(t, tt.tag, m.Base().Tag)
		})
	}
}

func TestClassify_ElementActions(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want Kind
	}{
		{"story replace", elementAction(2, "REPLACE", target("storyID", "S1"), source(storyXML("S9"))), KindEAStoryReplace},
		{"item replace", elementAction(2, "REPLACE", target("storyID", "S1", "itemID", "I1"), source(itemXML("I9"))), KindEAItemReplace},
		{"story delete", elementAction(2, "DELETE", "", source(idTags("storyID", "S1"))), KindEAStoryDelete},
		{"story delete blank target", elementAction(2, "DELETE", target("storyID", ""), source(idTags("storyID", "S1"))), KindEAStoryDelete},
		{"item delete", elementAction(2, "DELETE", target("storyID", "S1"), source(idTags("itemID", "I1"))), KindEAItemDelete},
		{"story insert", elementAction(2, "INSERT", target("storyID", "S1"), source(storyXML("S9"))), KindEAStoryInsert},
		{"item insert", elementAction(2, "INSERT", target("storyID", "S1", "itemID", "I1"), source(itemXML("I9"))), KindEAItemInsert},
		{"story swap", elementAction(2, "SWAP", "", source(idTags("storyID", "S1", "storyID", "S2"))), KindEAStorySwap},
		{"item swap", elementAction(2, "SWAP", target("storyID", "S1"), source(idTags("itemID", "I1", "itemID", "I2"))), KindEAItemSwap},
		{"story move", elementAction(2, "MOVE", target("storyID", "S1"), source(idTags("storyID", "S2"))), KindEAStoryMove},
		{"item move", elementAction(2, "MOVE", target("storyID", "S1", "itemID", "I1"), source(idTags("itemID", "I2"))), KindEAItemMove},
		{"lower case operation", elementAction(2, "swap", "", source(idTags("storyID", "S1", "storyID", "S2"))), KindEAStorySwap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustParse(t, tt.xml)
			assert.Equal(t, tt.want, m.Kind())
			assert.True(t, m.Kind().IsElementAction())
		})
	}
}

func TestClassify_ElementActionWithoutOperation(t *testing.T) {
	xml := envelope(3, `<roElementAction><roID>RO1</roID></roElementAction>`)
	_, err := Parse([]byte(xml))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.False(t, IsFatal(err))

	_, err = Parse([]byte(elementAction(3, "COPY", "", "")))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestClassify_PriorityOrder(t *testing.T) {
	// A roCreate wins over anything else present at the top level.
	xml := envelope(1, `<roStoryAppend><roID>RO1</roID></roStoryAppend><roCreate><roID>RO1</roID></roCreate>`)
	m := mustParse(t, xml)
	assert.Equal(t, KindRunningOrder, m.Kind())
}

func TestClassify_UnknownAndIgnored(t *testing.T) {
	_, err := Parse([]byte(envelope(4, `<heartbeat><time>now</time></heartbeat>`)))
	require.ErrorIs(t, err, ErrUnknownType)
	assert.NotErrorIs(t, err, ErrIgnoredType)

	_, err = Parse([]byte(`<notmos><roCreate/></notmos>`))
	require.NoError(t, err, "classification looks at direct children only, not the root name")

	for _, tag := range []string{"roItemStat", "roList"} {
		_, err = Parse([]byte(roBody(5, tag, "")))
		require.ErrorIs(t, err, ErrIgnoredType, tag)
		assert.False(t, IsFatal(err))
	}
}

func TestParse_MalformedXML(t *testing.T) {
	for _, in := range []string{
		`<mos><messageID>1</messageID><roCreate x=></roCreate></mos>`,
		`<mos><messageID>1</messageID></mos`,
		`not xml at all <`,
		``,
	} {
		_, err := Parse([]byte(in))
		require.Error(t, err, "input %q", in)
		assert.ErrorIs(t, err, ErrInvalidXML)
		assert.True(t, IsFatal(err))
		assert.NotErrorIs(t, err, ErrUnknownType)
	}
}

func TestMessage_Accessors(t *testing.T) {
	m := mustParse(t, createXML(12))
	assert.Equal(t, "mos.test", m.MOSID())
	assert.Equal(t, "ncs.test", m.NCSID())
	assert.Equal(t, "Six O'Clock", m.Slug())
	assert.False(t, m.Completed())
	assert.Equal(t, "RunningOrder 12", m.String())

	noID := mustParse(t, `<mos><roCreate><roID>RO1</roID></roCreate></mos>`)
	assert.False(t, noID.HasMessageID())
	assert.Zero(t, noID.MessageID())
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("NotAKind")
	assert.False(t, ok)
}
