package rograph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/mosromgr/internal/mos"
)

const sixOClock = `<mos><mosID>news.mos</mosID><ncsID>ncs</ncsID><messageID>10</messageID>
<roCreate><roID>RO1</roID><roSlug>Six O'Clock</roSlug><roEdStart>2024-01-02T18:00:00</roEdStart>
<story><storyID>S1</storyID><storySlug>Headlines</storySlug>
  <item><itemID>I1</itemID><itemSlug>Titles</itemSlug><objID>OBJ1</objID><objDur>250</objDur><objTB>25</objTB></item>
  <item><itemID>I2</itemID><itemSlug>Sting</itemSlug><objDur>125</objDur><objTB>25</objTB></item>
</story>
<story><storyID>S2</storyID><storySlug>Flood defences</storySlug></story>
<story><storyID>S3</storyID><storySlug>Weather</storySlug></story>
</roCreate></mos>`

func indexed(t *testing.T, store Store) *mos.RunningOrder {
	t.Helper()
	ro, err := mos.ParseRunningOrder([]byte(sixOClock))
	require.NoError(t, err)
	stats, err := Index(context.Background(), store, ro)
	require.NoError(t, err)
	assert.Equal(t, &GraphStats{RunningOrderCount: 1, StoryCount: 3, ItemCount: 2, EdgeCount: 7}, stats)
	return ro
}

func TestIndex_MemStore(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	indexed(t, store)

	ro, err := store.GetRunningOrder(ctx, "RO1")
	require.NoError(t, err)
	require.NotNil(t, ro)
	assert.Equal(t, "Six O'Clock", ro.Slug)
	assert.Equal(t, "2024-01-02T18:00:00Z", ro.Start)
	assert.Equal(t, 10, ro.MessageID)
	assert.False(t, ro.Completed)

	stories, err := store.Stories(ctx, "RO1")
	require.NoError(t, err)
	require.Len(t, stories, 3)
	assert.Equal(t, []string{"S1", "S2", "S3"}, []string{stories[0].StoryID, stories[1].StoryID, stories[2].StoryID})
	assert.InDelta(t, 15.0, stories[0].Duration, 1e-9)

	items, err := store.Items(ctx, StoryKey("RO1", "S1"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "I1", items[0].ItemID)
	assert.Equal(t, "OBJ1", items[0].ObjectID)
	assert.InDelta(t, 10.0, items[0].Duration, 1e-9)
}

func TestIndex_Reindex(t *testing.T) {
	store := NewMemStore()
	indexed(t, store)
	indexed(t, store)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &GraphStats{RunningOrderCount: 1, StoryCount: 3, ItemCount: 2, EdgeCount: 7}, stats)
}

func TestMemStore_QueryStories(t *testing.T) {
	store := NewMemStore()
	indexed(t, store)

	got, err := store.QueryStories(context.Background(), "FLOOD", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "S2", got[0].StoryID)

	got, err = store.QueryStories(context.Background(), "e", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "S1", got[0].StoryID)
}

func TestMemStore_DeleteRunningOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	indexed(t, store)
	require.NoError(t, store.DeleteRunningOrder(ctx, "RO1"))
	require.NoError(t, store.DeleteRunningOrder(ctx, "missing"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &GraphStats{}, stats)

	ro, err := store.GetRunningOrder(ctx, "RO1")
	require.NoError(t, err)
	assert.Nil(t, ro)
}

func TestIndex_RequiresROID(t *testing.T) {
	ro, err := mos.ParseRunningOrder([]byte(`<mos><messageID>1</messageID><roCreate><story><storyID>S1</storyID></story></roCreate></mos>`))
	require.NoError(t, err)
	_, err = Index(context.Background(), NewMemStore(), ro)
	assert.Error(t, err)
}
