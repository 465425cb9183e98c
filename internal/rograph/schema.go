package rograph

// --- Enums ---

// NodeKind classifies nodes in the running-order graph.
type NodeKind string

const (
	NodeKindRunningOrder NodeKind = "running_order"
	NodeKindStory        NodeKind = "story"
	NodeKindItem         NodeKind = "item"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	// EdgeKindContains links a running order to its stories and a story to
	// its items.
	EdgeKindContains EdgeKind = "CONTAINS"
	// EdgeKindNext links each story to the one after it.
	EdgeKindNext EdgeKind = "NEXT"
)

// --- Models ---

// RunningOrderNode is a merged running order.
type RunningOrderNode struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Start     string  `json:"start,omitempty"` // RFC 3339, empty when unknown
	Duration  float64 `json:"duration"`        // seconds
	Completed bool    `json:"completed"`
	MessageID int     `json:"messageId"`
}

// StoryNode is one story of a running order. Key is "roID/storyID".
type StoryNode struct {
	Key      string  `json:"key"`
	ROID     string  `json:"roId"`
	StoryID  string  `json:"storyId"`
	Slug     string  `json:"slug"`
	Position int     `json:"position"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
}

// ItemNode is one item of a story. Key is "roID/storyID/itemID".
type ItemNode struct {
	Key      string  `json:"key"`
	StoryKey string  `json:"storyKey"`
	ItemID   string  `json:"itemId"`
	Slug     string  `json:"slug"`
	ObjectID string  `json:"objectId,omitempty"`
	Type     string  `json:"type,omitempty"`
	Note     string  `json:"note,omitempty"`
	Position int     `json:"position"`
	Duration float64 `json:"duration"`
}

// Edge represents a relationship between two nodes, identified by node ID
// (running orders) or key (stories and items).
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
}

// GraphStats summarizes a running-order graph.
type GraphStats struct {
	RunningOrderCount int `json:"runningOrderCount"`
	StoryCount        int `json:"storyCount"`
	ItemCount         int `json:"itemCount"`
	EdgeCount         int `json:"edgeCount"`
}

// StoryKey builds the key of a story node.
func StoryKey(roID, storyID string) string { return roID + "/" + storyID }

// ItemKey builds the key of an item node.
func ItemKey(roID, storyID, itemID string) string { return StoryKey(roID, storyID) + "/" + itemID }
