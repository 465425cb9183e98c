// Package source provides the places MOS messages are read from: local
// files, in-memory documents and object stores such as S3 or the local
// message archive. Sources are cheap handles; their bytes are fetched on
// demand so that large collections need not be held in memory.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrNotExist is returned by stores for keys they do not hold.
var ErrNotExist = errors.New("object does not exist")

// Source is one MOS document that can be fetched, possibly more than once.
type Source interface {
	// ID names the source in logs and diagnostics (a path, key or label).
	ID() string

	// Fetch returns the raw document bytes, decompressed.
	Fetch(ctx context.Context) ([]byte, error)
}

// ObjectStore lists and fetches objects by key.
type ObjectStore interface {
	// List returns every key beginning with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// File reads a document from the local filesystem.
type File struct {
	Path string
}

// Compile-time interface checks.
var (
	_ Source = File{}
	_ Source = Bytes{}
	_ Source = Object{}
)

func (f File) ID() string { return f.Path }

func (f File) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", f.Path, err)
	}
	return Decompress(f.Path, data)
}

// Bytes is an in-memory document.
type Bytes struct {
	Name string
	Data []byte
}

func (b Bytes) ID() string { return b.Name }

func (b Bytes) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decompress(b.Name, b.Data)
}

// Object is a document held in an ObjectStore.
type Object struct {
	Store ObjectStore
	Key   string
}

func (o Object) ID() string { return o.Key }

func (o Object) Fetch(ctx context.Context) ([]byte, error) {
	data, err := o.Store.Get(ctx, o.Key)
	if err != nil {
		return nil, err
	}
	return Decompress(o.Key, data)
}

// Files returns a File source per path.
func Files(paths ...string) []Source {
	out := make([]Source, len(paths))
	for i, p := range paths {
		out[i] = File{Path: p}
	}
	return out
}

// Objects lists store under prefix and returns a source for every key that
// ends in suffix. Compressed variants (suffix + ".gz", suffix + ".zst") are
// included. An empty suffix matches every key.
func Objects(ctx context.Context, store ObjectStore, prefix, suffix string) ([]Source, error) {
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("source: list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	var out []Source
	for _, k := range keys {
		if !HasSuffix(k, suffix) {
			continue
		}
		out = append(out, Object{Store: store, Key: k})
	}
	return out, nil
}

// HasSuffix reports whether name ends in suffix, ignoring a trailing
// compression extension.
func HasSuffix(name, suffix string) bool {
	if suffix == "" {
		return true
	}
	return strings.HasSuffix(trimCompression(name), suffix)
}
