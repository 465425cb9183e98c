package mos

// Kind identifies which MOS message a document represents.
type Kind int

const (
	// KindUnknown is the zero value; no classification rule matched.
	KindUnknown Kind = iota

	// KindRunningOrder is a roCreate: a complete running order.
	KindRunningOrder

	KindStorySend
	KindStoryAppend
	KindStoryDelete
	KindStoryInsert
	KindStoryMove
	KindStoryReplace
	KindItemDelete
	KindItemInsert
	KindItemMoveMultiple
	KindItemReplace
	KindRunningOrderReplace
	KindMetaDataReplace
	KindReadyToAir

	// KindRunningOrderEnd is a roDelete. Merging it completes the running order.
	KindRunningOrderEnd

	// KindRunningOrderControl is a roCtrl carrying story payload updates.
	KindRunningOrderControl

	// roElementAction sub-variants, resolved from the operation attribute and
	// the shape of element_target.
	KindEAStoryReplace
	KindEAItemReplace
	KindEAStoryDelete
	KindEAItemDelete
	KindEAStoryInsert
	KindEAItemInsert
	KindEAStorySwap
	KindEAItemSwap
	KindEAStoryMove
	KindEAItemMove
)

// Kinds lists every classifiable kind in declaration order.
var Kinds = []Kind{
	KindRunningOrder, KindStorySend, KindStoryAppend, KindStoryDelete,
	KindStoryInsert, KindStoryMove, KindStoryReplace, KindItemDelete,
	KindItemInsert, KindItemMoveMultiple, KindItemReplace,
	KindRunningOrderReplace, KindMetaDataReplace, KindReadyToAir,
	KindRunningOrderEnd, KindRunningOrderControl,
	KindEAStoryReplace, KindEAItemReplace, KindEAStoryDelete, KindEAItemDelete,
	KindEAStoryInsert, KindEAItemInsert, KindEAStorySwap, KindEAItemSwap,
	KindEAStoryMove, KindEAItemMove,
}

func (k Kind) String() string {
	switch k {
	case KindRunningOrder:
		return "RunningOrder"
	case KindStorySend:
		return "StorySend"
	case KindStoryAppend:
		return "StoryAppend"
	case KindStoryDelete:
		return "StoryDelete"
	case KindStoryInsert:
		return "StoryInsert"
	case KindStoryMove:
		return "StoryMove"
	case KindStoryReplace:
		return "StoryReplace"
	case KindItemDelete:
		return "ItemDelete"
	case KindItemInsert:
		return "ItemInsert"
	case KindItemMoveMultiple:
		return "ItemMoveMultiple"
	case KindItemReplace:
		return "ItemReplace"
	case KindRunningOrderReplace:
		return "RunningOrderReplace"
	case KindMetaDataReplace:
		return "MetaDataReplace"
	case KindReadyToAir:
		return "ReadyToAir"
	case KindRunningOrderEnd:
		return "RunningOrderEnd"
	case KindRunningOrderControl:
		return "RunningOrderControl"
	case KindEAStoryReplace:
		return "EAStoryReplace"
	case KindEAItemReplace:
		return "EAItemReplace"
	case KindEAStoryDelete:
		return "EAStoryDelete"
	case KindEAItemDelete:
		return "EAItemDelete"
	case KindEAStoryInsert:
		return "EAStoryInsert"
	case KindEAItemInsert:
		return "EAItemInsert"
	case KindEAStorySwap:
		return "EAStorySwap"
	case KindEAItemSwap:
		return "EAItemSwap"
	case KindEAStoryMove:
		return "EAStoryMove"
	case KindEAItemMove:
		return "EAItemMove"
	default:
		return "Unknown"
	}
}

// BaseTag returns the name of the element under <mos> that carries the
// message body.
func (k Kind) BaseTag() string {
	switch k {
	case KindRunningOrder:
		return "roCreate"
	case KindStorySend:
		return "roStorySend"
	case KindStoryAppend:
		return "roStoryAppend"
	case KindStoryDelete:
		return "roStoryDelete"
	case KindStoryInsert:
		return "roStoryInsert"
	case KindStoryMove:
		return "roStoryMove"
	case KindStoryReplace:
		return "roStoryReplace"
	case KindItemDelete:
		return "roItemDelete"
	case KindItemInsert:
		return "roItemInsert"
	case KindItemMoveMultiple:
		return "roItemMoveMultiple"
	case KindItemReplace:
		return "roItemReplace"
	case KindRunningOrderReplace:
		return "roReplace"
	case KindMetaDataReplace:
		return "roMetadataReplace"
	case KindReadyToAir:
		return "roReadyToAir"
	case KindRunningOrderEnd:
		return "roDelete"
	case KindRunningOrderControl:
		return "roCtrl"
	case KindEAStoryReplace, KindEAItemReplace, KindEAStoryDelete, KindEAItemDelete,
		KindEAStoryInsert, KindEAItemInsert, KindEAStorySwap, KindEAItemSwap,
		KindEAStoryMove, KindEAItemMove:
		return "roElementAction"
	default:
		return ""
	}
}

// IsElementAction reports whether k is one of the roElementAction sub-variants.
func (k Kind) IsElementAction() bool {
	return k >= KindEAStoryReplace && k <= KindEAItemMove
}

// ParseKind returns the kind whose String form is name.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds {
		if k.String() == name {
			return k, true
		}
	}
	return KindUnknown, false
}
