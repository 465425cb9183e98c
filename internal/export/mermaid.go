package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/mosromgr/internal/rograph"
)

// GenerateMermaid produces a Mermaid graph TD diagram of one indexed running
// order. NEXT edges become solid arrows from the running order through its
// stories; items hang off their story with dotted arrows.
func GenerateMermaid(ctx context.Context, store rograph.Store, roID string) (string, error) {
	ro, err := store.GetRunningOrder(ctx, roID)
	if err != nil {
		return "", fmt.Errorf("get running order: %w", err)
	}
	if ro == nil {
		return "", fmt.Errorf("running order %q is not indexed", roID)
	}
	stories, err := store.Stories(ctx, roID)
	if err != nil {
		return "", fmt.Errorf("get stories: %w", err)
	}

	// Mermaid node IDs must be alphanumeric.
	nodeIDs := make(map[string]string)
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(nodeIDs))
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  %s([\"%s\"])\n", getID(ro.ID), label(ro.Slug, ro.ID))

	prev := ro.ID
	for _, s := range stories {
		fmt.Fprintf(&sb, "  %s[\"%s\"]\n", getID(s.Key), label(s.Slug, s.StoryID))
		fmt.Fprintf(&sb, "  %s --> %s\n", getID(prev), getID(s.Key))
		prev = s.Key

		items, err := store.Items(ctx, s.Key)
		if err != nil {
			return "", fmt.Errorf("get items: %w", err)
		}
		for _, it := range items {
			fmt.Fprintf(&sb, "  %s[/\"%s\"/]\n", getID(it.Key), label(it.Slug, it.ItemID))
			fmt.Fprintf(&sb, "  %s -.-> %s\n", getID(s.Key), getID(it.Key))
		}
	}
	return sb.String(), nil
}

// label returns slug, or id when the slug is blank, truncated to 40 runes
// and with double quotes escaped.
func label(slug, id string) string {
	s := strings.TrimSpace(slug)
	if s == "" {
		s = id
	}
	if r := []rune(s); len(r) > 40 {
		s = string(r[:39]) + "…"
	}
	return strings.ReplaceAll(s, `"`, "#quot;")
}
