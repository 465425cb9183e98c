package mos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_StoryInsertBeforeTarget(t *testing.T) {
	ro := newRO(t, storyXML("S1"), storyXML("S2"))
	apply(t, ro, roBody(2, "roStoryInsert", idTags("storyID", "S2")+storyXML("S3")))
	assert.Equal(t, []string{"S1", "S3", "S2"}, storyIDs(ro))
}

func TestApply_StoryInsertEmptyTargetAppends(t *testing.T) {
	ro := newRO(t, storyXML("S1"), storyXML("S2"))
	apply(t, ro, roBody(2, "roStoryInsert", idTags("storyID", "")+storyXML("S3")))
	assert.Equal(t, []string{"S1", "S2", "S3"}, storyIDs(ro))
}

func TestApply_ItemDelete(t *testing.T) {
	ro := newRO(t, storyXML("S1", "I1", "I2"))
	apply(t, ro, roBody(2, "roItemDelete", idTags("storyID", "S1", "itemID", "I1")))
	assert.Equal(t, []string{"I2"}, itemIDs(t, ro, "S1"))
}

func TestApply_StoryOperations(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want []string
	}{
		{"append", roBody(2, "roStoryAppend", storyXML("S4")+storyXML("S5")), []string{"S1", "S2", "S3", "S4", "S5"}},
		{"replace keeps position", roBody(2, "roStoryReplace", idTags("storyID", "S2")+storyXML("S8")+storyXML("S9")), []string{"S1", "S8", "S9", "S3"}},
		{"replace with same id", roBody(2, "roStoryReplace", idTags("storyID", "S2")+storyXML("S2", "I7")), []string{"S1", "S2", "S3"}},
		{"delete", roBody(2, "roStoryDelete", idTags("storyID", "S1", "storyID", "S3")), []string{"S2"}},
		{"move before target", roBody(2, "roStoryMove", idTags("storyID", "S3", "storyID", "S1")), []string{"S3", "S1", "S2"}},
		{"move single id to end", roBody(2, "roStoryMove", idTags("storyID", "S1")), []string{"S2", "S3", "S1"}},
		{"move empty target to end", roBody(2, "roStoryMove", idTags("storyID", "S1", "storyID", "")), []string{"S2", "S3", "S1"}},
		{"send replaces existing", roBody(2, "roStorySend", idTags("storyID", "S2")+`<storySlug>sent</storySlug><storyBody><p>hello</p><storyItem><itemID>I5</itemID></storyItem></storyBody>`), []string{"S1", "S2", "S3"}},
		{"send appends new", roBody(2, "roStorySend", idTags("storyID", "S7")+`<storyBody><p>hello</p></storyBody>`), []string{"S1", "S2", "S3", "S7"}},
		{"EA replace", elementAction(2, "REPLACE", target("storyID", "S1"), source(storyXML("S9"))), []string{"S9", "S2", "S3"}},
		{"EA delete", elementAction(2, "DELETE", "", source(idTags("storyID", "S2"))), []string{"S1", "S3"}},
		{"EA insert", elementAction(2, "INSERT", target("storyID", "S1"), source(storyXML("S9"))), []string{"S9", "S1", "S2", "S3"}},
		{"EA insert at end", elementAction(2, "INSERT", target("storyID", ""), source(storyXML("S9"))), []string{"S1", "S2", "S3", "S9"}},
		{"EA swap", elementAction(2, "SWAP", "", source(idTags("storyID", "S1", "storyID", "S3"))), []string{"S3", "S2", "S1"}},
		{"EA swap adjacent", elementAction(2, "SWAP", "", source(idTags("storyID", "S2", "storyID", "S1"))), []string{"S2", "S1", "S3"}},
		{"EA move in order", elementAction(2, "MOVE", target("storyID", "S1"), source(idTags("storyID", "S3", "storyID", "S2"))), []string{"S3", "S2", "S1"}},
		{"EA move to end", elementAction(2, "MOVE", target("storyID", ""), source(idTags("storyID", "S1"))), []string{"S2", "S3", "S1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := newRO(t, storyXML("S1", "I1"), storyXML("S2", "I1"), storyXML("S3"))
			apply(t, ro, tt.xml)
			assert.Equal(t, tt.want, storyIDs(ro))
			require.NoError(t, ro.CheckUnique())
			reparse(t, ro)
		})
	}
}

func TestApply_ItemOperations(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want []string
	}{
		{"insert before", roBody(2, "roItemInsert", idTags("storyID", "S1", "itemID", "I2")+itemXML("I9")), []string{"I1", "I9", "I2", "I3"}},
		{"insert at end", roBody(2, "roItemInsert", idTags("storyID", "S1", "itemID", "")+itemXML("I9")), []string{"I1", "I2", "I3", "I9"}},
		{"replace", roBody(2, "roItemReplace", idTags("storyID", "S1", "itemID", "I2")+itemXML("I8")+itemXML("I9")), []string{"I1", "I8", "I9", "I3"}},
		{"replace same id", roBody(2, "roItemReplace", idTags("storyID", "S1", "itemID", "I2")+itemXML("I2")), []string{"I1", "I2", "I3"}},
		{"delete many", roBody(2, "roItemDelete", idTags("storyID", "S1", "itemID", "I1", "itemID", "I3")), []string{"I2"}},
		{"move multiple", roBody(2, "roItemMoveMultiple", idTags("storyID", "S1", "itemID", "I3", "itemID", "I2", "itemID", "I1")), []string{"I3", "I2", "I1"}},
		{"move multiple to end", roBody(2, "roItemMoveMultiple", idTags("storyID", "S1", "itemID", "I1", "itemID", "")), []string{"I2", "I3", "I1"}},
		{"EA replace", elementAction(2, "REPLACE", target("storyID", "S1", "itemID", "I1"), source(itemXML("I9"))), []string{"I9", "I2", "I3"}},
		{"EA delete", elementAction(2, "DELETE", target("storyID", "S1"), source(idTags("itemID", "I2"))), []string{"I1", "I3"}},
		{"EA insert", elementAction(2, "INSERT", target("storyID", "S1", "itemID", "I3"), source(itemXML("I9"))), []string{"I1", "I2", "I9", "I3"}},
		{"EA insert at end", elementAction(2, "INSERT", target("storyID", "S1", "itemID", ""), source(itemXML("I9"))), []string{"I1", "I2", "I3", "I9"}},
		{"EA swap", elementAction(2, "SWAP", target("storyID", "S1"), source(idTags("itemID", "I1", "itemID", "I3"))), []string{"I3", "I2", "I1"}},
		{"EA move", elementAction(2, "MOVE", target("storyID", "S1", "itemID", "I1"), source(idTags("itemID", "I3"))), []string{"I3", "I1", "I2"}},
		{"EA move to end", elementAction(2, "MOVE", target("storyID", "S1", "itemID", ""), source(idTags("itemID", "I1"))), []string{"I2", "I3", "I1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := newRO(t, storyXML("S1", "I1", "I2", "I3"), storyXML("S2", "I1"))
			apply(t, ro, tt.xml)
			assert.Equal(t, tt.want, itemIDs(t, ro, "S1"))
			assert.Equal(t, []string{"I1"}, itemIDs(t, ro, "S2"), "other stories untouched")
			require.NoError(t, ro.CheckUnique())
		})
	}
}

func TestApply_StorySendConvertsBody(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	apply(t, ro, roBody(2, "roStorySend",
		idTags("storyID", "S1")+`<storySlug>sent</storySlug><storyBody><p>Good evening.</p><p>(cue VT)</p><storyItem><itemID>I5</itemID></storyItem></storyBody>`))

	s, ok := ro.Story("S1")
	require.True(t, ok)
	assert.Equal(t, "sent", s.Slug)
	assert.Equal(t, []string{"Good evening."}, s.Script())
	require.Len(t, s.Items, 1)
	assert.Equal(t, "I5", s.Items[0].ID)
	assert.Nil(t, s.Element().SelectElement("storyBody"))
	assert.Nil(t, s.Element().SelectElement("roID"))
	assert.Len(t, s.Body(), 3)
}

func TestApply_MatchesQualifiedIDs(t *testing.T) {
	ro := newRO(t, storyXML("NCS,RO1,S1"), storyXML("NCS,RO1,S2"))
	apply(t, ro, roBody(2, "roStoryDelete", idTags("storyID", "S1")))
	assert.Equal(t, []string{"NCS,RO1,S2"}, storyIDs(ro))
}

func TestApply_NotFoundSkipsWholeDelta(t *testing.T) {
	ro := newRO(t, storyXML("S1"), storyXML("S2"))
	before := serialized(t, ro)

	diags, err := Apply(ro, mustParse(t, roBody(2, "roStoryDelete", idTags("storyID", "S1", "storyID", "S404"))))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], ErrNotFound)
	assert.Equal(t, "not_found", diags[0].Code())
	assert.Equal(t, 2, diags[0].MessageID)
	assert.Equal(t, KindStoryDelete, diags[0].Kind)
	assert.Equal(t, before, serialized(t, ro), "S1 must not be deleted when S404 is missing")
}

func TestApply_RecoverableConditions(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want error
	}{
		{"insert target missing", roBody(2, "roStoryInsert", idTags("storyID", "S404")+storyXML("S9")), ErrNotFound},
		{"insert duplicate story", roBody(2, "roStoryInsert", idTags("storyID", "S1")+storyXML("S2")), ErrDuplicate},
		{"append repeats story", roBody(2, "roStoryAppend", storyXML("S9")+storyXML("S9")), ErrDuplicate},
		{"append story with repeated items", roBody(2, "roStoryAppend", storyXML("S9", "I1", "I1")), ErrDuplicate},
		{"append nothing", roBody(2, "roStoryAppend", ""), ErrInvalidDelta},
		{"replace onto other story", roBody(2, "roStoryReplace", idTags("storyID", "S1")+storyXML("S2")), ErrDuplicate},
		{"replace without target", roBody(2, "roStoryReplace", storyXML("S9")), ErrInvalidDelta},
		{"item insert duplicate", roBody(2, "roItemInsert", idTags("storyID", "S1", "itemID", "")+itemXML("I1")), ErrDuplicate},
		{"item insert missing story", roBody(2, "roItemInsert", idTags("storyID", "S404", "itemID", "")+itemXML("I9")), ErrNotFound},
		{"item delete missing", roBody(2, "roItemDelete", idTags("storyID", "S1", "itemID", "I404")), ErrNotFound},
		{"item replace without items", roBody(2, "roItemReplace", idTags("storyID", "S1", "itemID", "I1")), ErrInvalidDelta},
		{"item move needs target", roBody(2, "roItemMoveMultiple", idTags("storyID", "S1", "itemID", "I1")), ErrInvalidDelta},
		{"story move before itself", roBody(2, "roStoryMove", idTags("storyID", "S1", "storyID", "S1")), ErrInvalidDelta},
		{"story without id", roBody(2, "roStoryAppend", `<story><storySlug>x</storySlug></story>`), ErrInvalidDelta},
		{"EA swap needs two", elementAction(2, "SWAP", "", source(idTags("storyID", "S1"))), ErrInvalidDelta},
		{"EA swap missing", elementAction(2, "SWAP", "", source(idTags("storyID", "S1", "storyID", "S404"))), ErrNotFound},
		{"EA item swap missing item", elementAction(2, "SWAP", target("storyID", "S1"), source(idTags("itemID", "I1", "itemID", "I404"))), ErrNotFound},
		{"EA insert duplicate", elementAction(2, "INSERT", target("storyID", ""), source(storyXML("S1"))), ErrDuplicate},
		{"EA delete without source", elementAction(2, "DELETE", "", ""), ErrInvalidDelta},
		{"EA move missing target", elementAction(2, "MOVE", target("storyID", "S404"), source(idTags("storyID", "S1"))), ErrNotFound},
		{"ctrl without payload", roBody(2, "roCtrl", idTags("storyID", "S1")), ErrInvalidDelta},
		{"ctrl missing story", roBody(2, "roCtrl", idTags("storyID", "S404")+`<mosExternalMetadata><mosPayload><Ready>1</Ready></mosPayload></mosExternalMetadata>`), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := newRO(t, storyXML("S1", "I1"), storyXML("S2"))
			before := serialized(t, ro)

			diags, err := Apply(ro, mustParse(t, tt.xml))
			require.NoError(t, err)
			require.NotEmpty(t, diags)
			assert.ErrorIs(t, diags[0], tt.want)
			assert.False(t, IsFatal(diags[0]))
			assert.Equal(t, before, serialized(t, ro))
		})
	}
}

func TestApply_WrongProgrammeIsFatal(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	other := envelope(2, `<roStoryAppend><roID>RO2</roID>`+storyXML("S2")+`</roStoryAppend>`)

	diags, err := Apply(ro, mustParse(t, other))
	assert.Empty(t, diags)
	require.ErrorIs(t, err, ErrWrongProgramme)
	assert.True(t, IsFatal(err))

	var me *MergeError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, 2, me.MessageID)
	assert.Equal(t, testROID, me.ROID)
	assert.Equal(t, KindStoryAppend, me.Kind)
	assert.Equal(t, []string{"S1"}, storyIDs(ro))
}

func TestApply_CompletedIsTerminal(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	apply(t, ro, roBody(9, "roDelete", ""))
	require.True(t, ro.Completed())
	before := serialized(t, ro)

	for _, xml := range []string{
		roBody(10, "roStoryAppend", storyXML("S2")),
		roBody(11, "roCtrl", idTags("storyID", "S1")+`<mosExternalMetadata><mosPayload><Ready>1</Ready></mosPayload></mosExternalMetadata>`),
		roBody(12, "roDelete", ""),
	} {
		_, err := Apply(ro, mustParse(t, xml))
		require.ErrorIs(t, err, ErrCompleted)
	}
	assert.Equal(t, before, serialized(t, ro))

	// The completion marker survives serialization.
	again := reparse(t, ro)
	assert.True(t, again.Completed())
	assert.Contains(t, before, "<mosromgrmeta>")
}

func TestApply_RunningOrderAsDeltaIsInvalid(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	diags, err := Apply(ro, mustParse(t, createXML(2, storyXML("S2"))))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], ErrInvalidDelta)
}

func TestApply_MetaDataReplace(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	apply(t, ro, roBody(2, "roMetadataReplace", `<roSlug>Late News</roSlug><roEdStart></roEdStart><roChannel>BBC1</roChannel>`))

	assert.Equal(t, "Late News", ro.Slug())
	start, ok := ro.StartTime()
	require.True(t, ok, "blank roEdStart must not overwrite")
	assert.Equal(t, 18, start.Hour())

	base := ro.base()
	channel := base.SelectElement("roChannel")
	require.NotNil(t, channel)
	assert.Less(t, channel.Index(), base.SelectElement("story").Index())
	assert.Equal(t, []string{"S1"}, storyIDs(ro))
}

func TestApply_ReadyToAir(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	assert.Empty(t, ro.AirStatus())

	apply(t, ro, roBody(2, "roReadyToAir", `<roAir>READY</roAir>`))
	apply(t, ro, roBody(3, "roReadyToAir", `<roAir>NOT READY</roAir>`))
	assert.Equal(t, "NOT READY", ro.AirStatus())
	assert.Equal(t, []string{"S1"}, storyIDs(ro))
	assert.False(t, ro.Completed(), "an air status does not complete the running order")
	assert.Equal(t, 1, strings.Count(serialized(t, ro), "<roAir>"))

	// The status survives serialization, and so does completion after it.
	again := reparse(t, ro)
	assert.Equal(t, "NOT READY", again.AirStatus())
	apply(t, again, roBody(4, "roDelete", ""))
	again = reparse(t, again)
	assert.True(t, again.Completed())
	assert.Equal(t, "NOT READY", again.AirStatus())
	assert.Equal(t, 1, strings.Count(serialized(t, again), "<mosromgrmeta>"))
}

func TestApply_RunningOrderReplace(t *testing.T) {
	ro := newRO(t, storyXML("S1"), storyXML("S2"))
	apply(t, ro, roBody(2, "roReplace", `<roSlug>Replaced</roSlug>`+storyXML("S5")))
	assert.Equal(t, "Replaced", ro.Slug())
	assert.Equal(t, testROID, ro.ROID())
	assert.Equal(t, []string{"S5"}, storyIDs(ro))
	assert.Nil(t, ro.root().SelectElement("roReplace"))

	diags, err := Apply(ro, mustParse(t, roBody(3, "roReplace", storyXML("S6")+storyXML("S6"))))
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.ErrorIs(t, diags[0], ErrDuplicate)
}

func TestApply_RunningOrderControl(t *testing.T) {
	ro := newRO(t, storyXML("S1"), `<story><storyID>S2</storyID></story>`)
	ctrl := `<mosExternalMetadata><mosPayload><StoryDuration>45</StoryDuration><Ready>1</Ready><Blank>  </Blank></mosPayload></mosExternalMetadata>`

	apply(t, ro, roBody(2, "roCtrl", idTags("storyID", "S1")+ctrl))
	s1, _ := ro.Story("S1")
	assert.InDelta(t, 45, s1.Duration, 0.001)
	assert.Equal(t, "1", payloadText(s1.Element(), "Ready"))
	assert.Nil(t, s1.Element().FindElement("./mosExternalMetadata/mosPayload/Blank"))

	// A story without a payload gets one.
	apply(t, ro, roBody(3, "roCtrl", idTags("storyID", "S2")+ctrl))
	s2, _ := ro.Story("S2")
	assert.InDelta(t, 45, s2.Duration, 0.001)
}

func TestApply_DeltaIsNotMutated(t *testing.T) {
	ro := newRO(t, storyXML("S1"))
	msg := mustParse(t, roBody(2, "roStoryAppend", storyXML("S2")))
	before, err := msg.XML()
	require.NoError(t, err)

	diags, err := Apply(ro, msg)
	require.NoError(t, err)
	require.Empty(t, diags)

	after, err := msg.XML()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestApply_ZeroDeltaRoundTrip(t *testing.T) {
	in := createXML(1, storyXML("S1", "I1"), `<story><storyID>S2</storyID><unmodeled attr="x"><deep>keep &amp; me</deep></unmodeled></story>`)
	ro, err := ParseRunningOrder([]byte(in))
	require.NoError(t, err)

	out := reparse(t, ro)
	assert.Equal(t, serialized(t, ro), serialized(t, out))
	assert.Contains(t, serialized(t, out), `<unmodeled attr="x">`)
	assert.Contains(t, serialized(t, out), `keep &amp; me`)
}

func TestApply_UniquenessAfterSequence(t *testing.T) {
	ro := newRO(t, storyXML("S1", "I1", "I2"), storyXML("S2"))
	for _, xml := range []string{
		roBody(2, "roStoryAppend", storyXML("S3")),
		roBody(3, "roItemInsert", idTags("storyID", "S2", "itemID", "")+itemXML("I1")),
		elementAction(4, "SWAP", "", source(idTags("storyID", "S1", "storyID", "S3"))),
		roBody(5, "roStoryMove", idTags("storyID", "S2", "storyID", "S3")),
		roBody(6, "roItemReplace", idTags("storyID", "S1", "itemID", "I2")+itemXML("I3")),
	} {
		apply(t, ro, xml)
		require.NoError(t, ro.CheckUnique())
	}
	assert.Equal(t, []string{"S2", "S3", "S1"}, storyIDs(ro))
	assert.Equal(t, []string{"I1", "I3"}, itemIDs(t, ro, "S1"))
}
