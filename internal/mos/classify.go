package mos

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

// simpleKinds is the priority order of the first classification pass: the
// first direct child of <mos> found in this list decides the kind.
var simpleKinds = []Kind{
	KindRunningOrder,
	KindStorySend,
	KindStoryAppend,
	KindStoryDelete,
	KindStoryInsert,
	KindStoryMove,
	KindStoryReplace,
	KindItemDelete,
	KindItemInsert,
	KindItemMoveMultiple,
	KindItemReplace,
	KindRunningOrderReplace,
	KindMetaDataReplace,
	KindReadyToAir,
	KindRunningOrderEnd,
	KindRunningOrderControl,
}

// ignoredTags are status messages that carry nothing to merge. They are
// reported with ErrIgnoredType rather than ErrUnknownType.
var ignoredTags = []string{"roItemStat", "roList"}

// Classify inspects the structure of a parsed MOS document and returns its
// kind. It never mutates root. Unclassifiable documents return ErrUnknownType
// (or ErrIgnoredType for known status-only messages); both are recoverable.
func Classify(root *etree.Element) (Kind, error) {
	if root == nil {
		return KindUnknown, fmt.Errorf("%w: empty document", ErrUnknownType)
	}
	for _, k := range simpleKinds {
		if root.SelectElement(k.BaseTag()) != nil {
			return k, nil
		}
	}
	if ea := root.SelectElement("roElementAction"); ea != nil {
		return classifyElementAction(ea)
	}
	for _, tag := range ignoredTags {
		if root.SelectElement(tag) != nil {
			return KindUnknown, fmt.Errorf("%w: %s", ErrIgnoredType, tag)
		}
	}
	return KindUnknown, fmt.Errorf("%w: root <%s>", ErrUnknownType, root.Tag)
}

// classifyElementAction resolves a roElementAction to one of its ten
// sub-variants from the operation attribute and the element_target shape.
func classifyElementAction(ea *etree.Element) (Kind, error) {
	op := strings.ToUpper(strings.TrimSpace(ea.SelectAttrValue("operation", "")))
	target := ea.SelectElement("element_target")

	// REPLACE, INSERT and MOVE always carry a target; an itemID in it makes
	// the action item-level.
	itemLevel := target != nil && target.SelectElement("itemID") != nil

	// DELETE and SWAP name their subjects in element_source; a target is only
	// present (with a storyID) when the subjects are items of that story.
	hasStoryTarget := target != nil && mosxml.ChildText(target, "storyID") != ""

	switch op {
	case "REPLACE":
		if itemLevel {
			return KindEAItemReplace, nil
		}
		return KindEAStoryReplace, nil
	case "INSERT":
		if itemLevel {
			return KindEAItemInsert, nil
		}
		return KindEAStoryInsert, nil
	case "MOVE":
		if itemLevel {
			return KindEAItemMove, nil
		}
		return KindEAStoryMove, nil
	case "DELETE":
		if hasStoryTarget {
			return KindEAItemDelete, nil
		}
		return KindEAStoryDelete, nil
	case "SWAP":
		if hasStoryTarget {
			return KindEAItemSwap, nil
		}
		return KindEAStorySwap, nil
	case "":
		return KindUnknown, fmt.Errorf("%w: roElementAction without operation", ErrUnknownType)
	default:
		return KindUnknown, fmt.Errorf("%w: roElementAction operation %q", ErrUnknownType, op)
	}
}
