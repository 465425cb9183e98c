// Package archive keeps MOS messages in a local Pebble database so that a
// programme can be re-merged without going back to the object store. Each
// message is stored compressed with a content digest, and the archive can
// be used anywhere a source.ObjectStore is accepted.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/source"
)

const keyPrefix = "msg:"

// Store is a Pebble-backed message archive.
type Store struct {
	db  *pebble.DB
	now func() time.Time
}

var _ source.ObjectStore = (*Store)(nil)

// Open opens (creating if needed) the archive in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", dir, err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", dir, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores data under key, replacing any previous version. The message
// is classified so that List output can show what it holds; documents that
// do not classify are stored all the same.
func (s *Store) Put(ctx context.Context, key string, data []byte) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if len(data) > source.MaxDocumentSize {
		return Info{}, fmt.Errorf("archive: put %s: %w: %d bytes", key, source.ErrTooLarge, len(data))
	}
	rec := newRecord(key, data, s.now())
	if msg, err := mos.Parse(data); err == nil {
		rec.MessageID = msg.MessageID()
		rec.ROID = msg.ROID()
		rec.Kind = msg.Kind().String()
	}
	b, err := encodeRecord(rec)
	if err != nil {
		return Info{}, err
	}
	if err := s.db.Set([]byte(keyPrefix+key), b, pebble.Sync); err != nil {
		return Info{}, fmt.Errorf("archive: put %s: %w", key, err)
	}
	return rec.info(), nil
}

// Get returns the payload stored under key, verified against its digest.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("archive: %s: %w", key, source.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get %s: %w", key, err)
	}
	defer closer.Close()
	rec, err := decodeRecord(v)
	if err != nil {
		return nil, err
	}
	return rec.open()
}

// List returns the keys under prefix in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.Walk(ctx, prefix, func(info Info) error {
		keys = append(keys, info.Key)
		return nil
	})
	return keys, err
}

// Walk calls fn with the metadata of every record under prefix, in key
// order, stopping at the first error.
func (s *Store) Walk(ctx context.Context, prefix string, fn func(Info) error) error {
	lower := []byte(keyPrefix + prefix)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upperBound(lower),
	})
	if err != nil {
		return fmt.Errorf("archive: iterate: %w", err)
	}
	defer it.Close()
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := decodeRecord(bytes.Clone(it.Value()))
		if err != nil {
			return err
		}
		if err := fn(rec.info()); err != nil {
			return err
		}
	}
	return it.Error()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(keyPrefix+key), pebble.Sync); err != nil {
		return fmt.Errorf("archive: delete %s: %w", key, err)
	}
	return nil
}

// upperBound returns the smallest key greater than every key with prefix p.
func upperBound(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
