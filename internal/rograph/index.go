// Package rograph indexes merged running orders into a graph of
// RunningOrder, Story and Item nodes joined by CONTAINS and NEXT edges.
package rograph

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/mosromgr/internal/mos"
)

// Index writes ro into store, replacing any earlier index of the same
// running order.
func Index(ctx context.Context, store Store, ro *mos.RunningOrder) (*GraphStats, error) {
	roID := ro.ROID()
	if roID == "" {
		return nil, fmt.Errorf("rograph: running order has no roID")
	}
	if err := store.DeleteRunningOrder(ctx, roID); err != nil {
		return nil, fmt.Errorf("rograph: clear %s: %w", roID, err)
	}

	node := RunningOrderNode{
		ID:        roID,
		Slug:      ro.Slug(),
		Duration:  ro.Duration(),
		Completed: ro.Completed(),
		MessageID: ro.MessageID(),
	}
	if t, ok := ro.StartTime(); ok {
		node.Start = t.Format(time.RFC3339)
	}
	if err := store.AddRunningOrder(ctx, node); err != nil {
		return nil, err
	}

	stats := &GraphStats{RunningOrderCount: 1}
	var prev string
	for pos, s := range ro.Stories() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := StoryKey(roID, s.ID)
		if err := store.AddStory(ctx, StoryNode{
			Key:      key,
			ROID:     roID,
			StoryID:  s.ID,
			Slug:     s.Slug,
			Position: pos,
			Offset:   s.Offset,
			Duration: s.Duration,
		}); err != nil {
			return nil, err
		}
		edges := []Edge{{SourceID: roID, TargetID: key, Kind: EdgeKindContains}}
		if prev != "" {
			edges = append(edges, Edge{SourceID: prev, TargetID: key, Kind: EdgeKindNext})
		}
		prev = key
		stats.StoryCount++

		for ipos, it := range s.Items {
			ikey := ItemKey(roID, s.ID, it.ID)
			if err := store.AddItem(ctx, ItemNode{
				Key:      ikey,
				StoryKey: key,
				ItemID:   it.ID,
				Slug:     it.Slug,
				ObjectID: it.ObjectID,
				Type:     it.Type,
				Note:     it.Note,
				Position: ipos,
				Duration: it.Duration,
			}); err != nil {
				return nil, err
			}
			edges = append(edges, Edge{SourceID: key, TargetID: ikey, Kind: EdgeKindContains})
			stats.ItemCount++
		}
		for _, e := range edges {
			if err := store.AddEdge(ctx, e); err != nil {
				return nil, err
			}
		}
		stats.EdgeCount += len(edges)
	}
	return stats, nil
}
