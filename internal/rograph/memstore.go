package rograph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	ros     map[string]RunningOrderNode
	stories map[string]StoryNode
	items   map[string]ItemNode
	edges   []Edge
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		ros:     make(map[string]RunningOrderNode),
		stories: make(map[string]StoryNode),
		items:   make(map[string]ItemNode),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

func (m *MemStore) AddRunningOrder(_ context.Context, node RunningOrderNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ros[node.ID] = node
	return nil
}

func (m *MemStore) AddStory(_ context.Context, node StoryNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[node.Key] = node
	return nil
}

func (m *MemStore) AddItem(_ context.Context, node ItemNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[node.Key] = node
	return nil
}

// AddEdge appends an edge to the internal slice.
func (m *MemStore) AddEdge(_ context.Context, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

func (m *MemStore) DeleteRunningOrder(_ context.Context, roID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gone := map[string]bool{roID: true}
	delete(m.ros, roID)
	for k, s := range m.stories {
		if s.ROID == roID {
			gone[k] = true
			delete(m.stories, k)
		}
	}
	for k, it := range m.items {
		if gone[it.StoryKey] {
			delete(m.items, k)
		}
	}
	kept := m.edges[:0]
	for _, e := range m.edges {
		if !gone[e.SourceID] {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	return nil
}

// GetRunningOrder returns the running order with the given ID, or nil if
// not found.
func (m *MemStore) GetRunningOrder(_ context.Context, roID string) (*RunningOrderNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ro, ok := m.ros[roID]
	if !ok {
		return nil, nil
	}
	return &ro, nil
}

// RunningOrders returns every running order sorted by ID.
func (m *MemStore) RunningOrders(_ context.Context) ([]RunningOrderNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunningOrderNode, 0, len(m.ros))
	for _, ro := range m.ros {
		out = append(out, ro)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stories returns the stories of a running order in running order.
func (m *MemStore) Stories(_ context.Context, roID string) ([]StoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoryNode
	for _, s := range m.stories {
		if s.ROID == roID {
			out = append(out, s)
		}
	}
	sortStories(out)
	return out, nil
}

// Items returns the items of a story in order.
func (m *MemStore) Items(_ context.Context, storyKey string) ([]ItemNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ItemNode
	for _, it := range m.items {
		if it.StoryKey == storyKey {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MemStore) QueryStories(_ context.Context, query string, limit int) ([]StoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lowerQuery := strings.ToLower(query)
	var results []StoryNode
	for _, s := range m.stories {
		if strings.Contains(strings.ToLower(s.Slug), lowerQuery) {
			results = append(results, s)
		}
	}
	sortStories(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats returns counts of all node and edge types in the graph.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &GraphStats{
		RunningOrderCount: len(m.ros),
		StoryCount:        len(m.stories),
		ItemCount:         len(m.items),
		EdgeCount:         len(m.edges),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

func sortStories(s []StoryNode) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].ROID != s[j].ROID {
			return s[i].ROID < s[j].ROID
		}
		return s[i].Position < s[j].Position
	})
}
