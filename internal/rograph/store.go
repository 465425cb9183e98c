package rograph

import (
	"context"
	"io"
)

// Store is the interface for the running-order graph backend.
// Implementations: KuzuStore (production), MemStore (testing and cgo-less
// builds).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddRunningOrder(ctx context.Context, node RunningOrderNode) error
	AddStory(ctx context.Context, node StoryNode) error
	AddItem(ctx context.Context, node ItemNode) error
	AddEdge(ctx context.Context, edge Edge) error
	// DeleteRunningOrder removes a running order with its stories, items
	// and edges. Deleting an unknown ID is not an error.
	DeleteRunningOrder(ctx context.Context, roID string) error

	// Read operations. Lookups of unknown IDs return nil and no error.
	GetRunningOrder(ctx context.Context, roID string) (*RunningOrderNode, error)
	RunningOrders(ctx context.Context) ([]RunningOrderNode, error)
	Stories(ctx context.Context, roID string) ([]StoryNode, error)
	Items(ctx context.Context, storyKey string) ([]ItemNode, error)
	// QueryStories returns stories whose slug contains query, ignoring
	// case, ordered by running order and position. A limit <= 0 returns
	// every match.
	QueryStories(ctx context.Context, query string, limit int) ([]StoryNode, error)

	Stats(ctx context.Context) (*GraphStats, error)
}
