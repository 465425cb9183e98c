package archive

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/source"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = func() time.Time { return time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC) }
	return s
}

const (
	createDoc = `<mos><messageID>1</messageID><roCreate><roID>RO1</roID><story><storyID>S1</storyID></story></roCreate></mos>`
	appendDoc = `<mos><messageID>2</messageID><roStoryAppend><roID>RO1</roID><story><storyID>S2</storyID></story></roStoryAppend></mos>`
	endDoc    = `<mos><messageID>3</messageID><roDelete><roID>RO1</roID></roDelete></mos>`
)

func TestStore_PutGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "ro1/1.mos.xml", []byte(createDoc))
	require.NoError(t, err)
	assert.Equal(t, "ro1/1.mos.xml", info.Key)
	assert.Equal(t, int64(len(createDoc)), info.Size)
	assert.Len(t, info.Digest, 64)
	assert.Equal(t, 1, info.MessageID)
	assert.Equal(t, "RO1", info.ROID)
	assert.Equal(t, "RunningOrder", info.Kind)

	got, err := s.Get(ctx, "ro1/1.mos.xml")
	require.NoError(t, err)
	assert.Equal(t, createDoc, string(got))

	_, err = s.Get(ctx, "ro1/404.mos.xml")
	assert.ErrorIs(t, err, source.ErrNotExist)
}

func TestStore_StoresUnclassifiedDocuments(t *testing.T) {
	s := openStore(t)
	info, err := s.Put(context.Background(), "junk.txt", []byte("not xml"))
	require.NoError(t, err)
	assert.Empty(t, info.Kind)

	got, err := s.Get(context.Background(), "junk.txt")
	require.NoError(t, err)
	assert.Equal(t, "not xml", string(got))
}

func TestStore_ListAndWalk(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, k := range []string{"ro2/1.mos.xml", "ro1/2.mos.xml", "ro1/1.mos.xml", "ro10/1.mos.xml"} {
		_, err := s.Put(ctx, k, []byte(createDoc))
		require.NoError(t, err)
	}

	keys, err := s.List(ctx, "ro1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ro1/1.mos.xml", "ro1/2.mos.xml"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	var stamps []time.Time
	require.NoError(t, s.Walk(ctx, "ro2/", func(info Info) error {
		stamps = append(stamps, info.StoredAt)
		return nil
	}))
	require.Len(t, stamps, 1)
	assert.Equal(t, 2024, stamps[0].Year())

	require.NoError(t, s.Delete("ro1/1.mos.xml"))
	keys, err = s.List(ctx, "ro1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"ro1/2.mos.xml"}, keys)
}

func TestStore_DetectsCorruption(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "k", []byte(createDoc))
	require.NoError(t, err)

	rec := newRecord("k", []byte(createDoc), time.Now())
	rec.Digest[0] ^= 0xff
	b, err := encodeRecord(rec)
	require.NoError(t, err)
	require.NoError(t, s.db.Set([]byte(keyPrefix+"k"), b, pebble.Sync))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, s.db.Set([]byte(keyPrefix+"k"), []byte{0xff, 0x00}, pebble.Sync))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_SizeCap(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "big", make([]byte, source.MaxDocumentSize+1))
	require.ErrorIs(t, err, source.ErrTooLarge)
	_, err = s.Get(ctx, "big")
	assert.ErrorIs(t, err, source.ErrNotExist)

	// A record claiming an oversized payload is refused before decoding.
	rec := newRecord("k", []byte(createDoc), time.Now())
	rec.Size = source.MaxDocumentSize + 1
	b, err := encodeRecord(rec)
	require.NoError(t, err)
	require.NoError(t, s.db.Set([]byte(keyPrefix+"k"), b, pebble.Sync))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_AsCollectionSource(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for k, doc := range map[string]string{"ro1/3.mos.xml": endDoc, "ro1/1.mos.xml": createDoc, "ro1/2.mos.xml": appendDoc} {
		_, err := s.Put(ctx, k, []byte(doc))
		require.NoError(t, err)
	}

	c, err := orchestrator.FromStore(ctx, s, "ro1/", ".mos.xml", orchestrator.Options{})
	require.NoError(t, err)
	res, err := c.Merge(ctx)
	require.NoError(t, err)
	assert.True(t, res.RunningOrder.Completed())
	assert.Len(t, res.RunningOrder.Stories(), 2)
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("msg;"), upperBound([]byte("msg:")))
	assert.Equal(t, []byte("b"), upperBound([]byte{'a', 0xff}))
	assert.Nil(t, upperBound([]byte{0xff}))
}
