package mos

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

// Apply merges msg into ro.
//
// Fatal conditions (running order id mismatch, ro already completed) are
// returned as a *MergeError and leave ro untouched. Every other problem with
// the message (missing target, duplicate id, malformed payload) is returned
// as diagnostics; in that case the message is skipped whole and ro is also
// untouched. A nil error and no diagnostics means the message was applied.
func Apply(ro *RunningOrder, msg *Message) ([]Diagnostic, error) {
	if msg.ROID() != ro.ROID() {
		return nil, &MergeError{
			MessageID: msg.MessageID(),
			ROID:      ro.ROID(),
			Kind:      msg.Kind(),
			Err:       ErrWrongProgramme,
			Detail:    fmt.Sprintf("message is for %q", msg.ROID()),
		}
	}
	if ro.Completed() {
		return nil, &MergeError{
			MessageID: msg.MessageID(),
			ROID:      ro.ROID(),
			Kind:      msg.Kind(),
			Err:       ErrCompleted,
		}
	}

	d := &delta{msg: msg, base: msg.Base()}
	edit := plan(ro, d)
	if len(d.diags) > 0 {
		return d.diags, nil
	}
	if edit != nil {
		edit()
	}
	return nil, nil
}

// delta collects diagnostics while a merge is planned.
type delta struct {
	msg   *Message
	base  *etree.Element
	diags []Diagnostic
}

func (d *delta) report(err error, format string, args ...any) {
	d.diags = append(d.diags, Diagnostic{
		Err:       err,
		MessageID: d.msg.MessageID(),
		Kind:      d.msg.Kind(),
		Detail:    fmt.Sprintf(format, args...),
	})
}

func (d *delta) failed() bool { return len(d.diags) > 0 }

// plan validates the message against ro and returns the edit that applies
// it. Validation never touches the tree, so a message that produced
// diagnostics leaves no partial mutation behind.
func plan(ro *RunningOrder, d *delta) func() {
	switch d.msg.Kind() {
	case KindStorySend:
		return planStorySend(ro, d)
	case KindStoryAppend:
		return planStoryAppend(ro, d)
	case KindStoryInsert:
		return planStoryInsert(ro, d, d.base, d.base)
	case KindStoryReplace:
		return planStoryReplace(ro, d, d.base, d.base)
	case KindStoryDelete:
		return planStoryDelete(ro, d, mosxml.ChildTexts(d.base, "storyID"))
	case KindStoryMove:
		return planStoryMove(ro, d)
	case KindItemInsert:
		return planItemInsert(ro, d, d.base, d.base)
	case KindItemReplace:
		return planItemReplace(ro, d, d.base, d.base)
	case KindItemDelete:
		return planItemDelete(ro, d, d.base, mosxml.ChildTexts(d.base, "itemID"))
	case KindItemMoveMultiple:
		return planItemMoveMultiple(ro, d)
	case KindMetaDataReplace:
		return planMetaDataReplace(ro, d)
	case KindReadyToAir:
		return planReadyToAir(ro, d)
	case KindRunningOrderReplace:
		return planRunningOrderReplace(ro, d)
	case KindRunningOrderEnd:
		return planRunningOrderEnd(ro, d)
	case KindRunningOrderControl:
		return planRunningOrderControl(ro, d)
	case KindEAStoryReplace:
		return planStoryReplace(ro, d, d.target(), d.source())
	case KindEAItemReplace:
		return planItemReplace(ro, d, d.target(), d.source())
	case KindEAStoryDelete:
		return planStoryDelete(ro, d, mosxml.ChildTexts(d.source(), "storyID"))
	case KindEAItemDelete:
		return planItemDelete(ro, d, d.target(), mosxml.ChildTexts(d.source(), "itemID"))
	case KindEAStoryInsert:
		return planStoryInsert(ro, d, d.target(), d.source())
	case KindEAItemInsert:
		return planItemInsert(ro, d, d.target(), d.source())
	case KindEAStorySwap:
		return planStorySwap(ro, d)
	case KindEAItemSwap:
		return planItemSwap(ro, d)
	case KindEAStoryMove:
		return planEAStoryMove(ro, d)
	case KindEAItemMove:
		return planEAItemMove(ro, d)
	case KindRunningOrder:
		d.report(ErrInvalidDelta, "a roCreate cannot be merged into a running order")
		return nil
	default:
		d.report(ErrInvalidDelta, "no merge defined for %s", d.msg.Kind())
		return nil
	}
}

func (d *delta) target() *etree.Element { return d.base.SelectElement("element_target") }
func (d *delta) source() *etree.Element { return d.base.SelectElement("element_source") }

// children returns the elements named tag under e, or nil when e is nil.
func children(e *etree.Element, tag string) []*etree.Element {
	if e == nil {
		return nil
	}
	return e.SelectElements(tag)
}

// ---------- Lookup helpers ----------

func (d *delta) findStory(ro *RunningOrder, id string) *etree.Element {
	s := mosxml.FindChild(ro.base(), "story", id)
	if s == nil {
		d.report(ErrNotFound, "story %s", id)
	}
	return s
}

func (d *delta) findItem(story *etree.Element, id string) *etree.Element {
	it := mosxml.FindChild(story, "item", id)
	if it == nil {
		d.report(ErrNotFound, "item %s in story %s", id, mosxml.IDOf(story))
	}
	return it
}

// requireStory resolves the storyID held by holder, reporting a missing id
// as an invalid payload.
func (d *delta) requireStory(ro *RunningOrder, holder *etree.Element) *etree.Element {
	id := mosxml.ChildText(holder, "storyID")
	if id == "" {
		d.report(ErrInvalidDelta, "no target storyID")
		return nil
	}
	return d.findStory(ro, id)
}

// checkNewChildren reports payload elements (stories or items) that lack an
// id, repeat an id within the payload, or collide with an existing sibling
// under parent other than those being replaced. New stories are also checked
// for repeated item ids.
func (d *delta) checkNewChildren(parent *etree.Element, tag string, nodes []*etree.Element, replaced ...*etree.Element) {
	var seen []string
	for _, n := range nodes {
		id := mosxml.IDOf(n)
		if id == "" {
			d.report(ErrInvalidDelta, "%s without %sID", tag, tag)
			continue
		}
		for _, prev := range seen {
			if mosxml.MatchID(prev, id) {
				d.report(ErrDuplicate, "%s %s repeated in message", tag, id)
			}
		}
		seen = append(seen, id)
		if existing := mosxml.FindChild(parent, tag, id); existing != nil && !contains(replaced, existing) {
			d.report(ErrDuplicate, "%s %s already present", tag, id)
		}
		if tag == "story" {
			d.checkNewChildren(nil, "item", n.SelectElements("item"))
		}
	}
}

func contains(elems []*etree.Element, e *etree.Element) bool {
	for _, x := range elems {
		if x == e {
			return true
		}
	}
	return false
}

// insertOrAppend places nodes before anchor, or after the last sibling named
// tag when anchor is nil. An empty target id therefore means "at the end".
func insertOrAppend(parent, anchor *etree.Element, tag string, nodes []*etree.Element) {
	if anchor != nil {
		mosxml.InsertBefore(anchor, nodes...)
		return
	}
	mosxml.AppendAfterLast(parent, tag, nodes...)
}

// ---------- Story operations ----------

// storyFromStorySend converts a roStorySend body into a <story>: storyBody
// children are hoisted into the story and storyItem becomes item.
func storyFromStorySend(ss *etree.Element) *etree.Element {
	story := ss.Copy()
	story.Tag = "story"
	for _, body := range story.SelectElements("storyBody") {
		for _, c := range body.ChildElements() {
			if c.Tag == "storyItem" {
				c.Tag = "item"
			}
		}
		hoisted := body.ChildElements()
		mosxml.Replace(body, hoisted...)
	}
	// roID belongs to the message, not the story.
	for _, id := range story.SelectElements("roID") {
		mosxml.Detach(id)
	}
	return story
}

func planStorySend(ro *RunningOrder, d *delta) func() {
	story := storyFromStorySend(d.base)
	id := mosxml.IDOf(story)
	if id == "" {
		d.report(ErrInvalidDelta, "no storyID")
		return nil
	}
	existing := mosxml.FindChild(ro.base(), "story", id)
	d.checkNewChildren(nil, "item", story.SelectElements("item"))
	if d.failed() {
		return nil
	}
	return func() {
		if existing != nil {
			mosxml.Replace(existing, story)
			return
		}
		mosxml.AppendAfterLast(ro.base(), "story", story)
	}
}

func planStoryAppend(ro *RunningOrder, d *delta) func() {
	stories := children(d.base, "story")
	if len(stories) == 0 {
		d.report(ErrInvalidDelta, "no stories to append")
		return nil
	}
	d.checkNewChildren(ro.base(), "story", stories)
	if d.failed() {
		return nil
	}
	return func() {
		mosxml.AppendAfterLast(ro.base(), "story", mosxml.Clone(stories)...)
	}
}

// planStoryInsert inserts the stories under source before the storyID named
// by target. An empty target id inserts at the end.
func planStoryInsert(ro *RunningOrder, d *delta, target, source *etree.Element) func() {
	stories := children(source, "story")
	if len(stories) == 0 {
		d.report(ErrInvalidDelta, "no stories to insert")
		return nil
	}
	var anchor *etree.Element
	if id := mosxml.ChildText(target, "storyID"); id != "" {
		anchor = d.findStory(ro, id)
	}
	d.checkNewChildren(ro.base(), "story", stories)
	if d.failed() {
		return nil
	}
	return func() {
		insertOrAppend(ro.base(), anchor, "story", mosxml.Clone(stories))
	}
}

// planStoryReplace replaces the story named under target with the stories
// under source, keeping its position.
func planStoryReplace(ro *RunningOrder, d *delta, target, source *etree.Element) func() {
	old := d.requireStory(ro, target)
	stories := children(source, "story")
	if len(stories) == 0 {
		d.report(ErrInvalidDelta, "no replacement stories")
	}
	if old != nil {
		d.checkNewChildren(ro.base(), "story", stories, old)
	}
	if d.failed() {
		return nil
	}
	return func() {
		mosxml.Replace(old, mosxml.Clone(stories)...)
	}
}

func planStoryDelete(ro *RunningOrder, d *delta, ids []string) func() {
	if len(ids) == 0 {
		d.report(ErrInvalidDelta, "no stories to delete")
		return nil
	}
	victims := make([]*etree.Element, 0, len(ids))
	for _, id := range ids {
		if s := d.findStory(ro, id); s != nil {
			victims = append(victims, s)
		}
	}
	if d.failed() {
		return nil
	}
	return func() {
		for _, s := range victims {
			mosxml.Detach(s)
		}
	}
}

// planStoryMove handles roStoryMove: every storyID but the last is moved, in
// order, before the last. A single storyID, or an empty last one, moves the
// story to the end.
func planStoryMove(ro *RunningOrder, d *delta) func() {
	ids := mosxml.ChildTexts(d.base, "storyID")
	switch len(ids) {
	case 0:
		d.report(ErrInvalidDelta, "no storyIDs")
		return nil
	case 1:
		return planMoveStories(ro, d, ids, "")
	default:
		return planMoveStories(ro, d, ids[:len(ids)-1], ids[len(ids)-1])
	}
}

func planEAStoryMove(ro *RunningOrder, d *delta) func() {
	ids := mosxml.ChildTexts(d.source(), "storyID")
	if len(ids) == 0 {
		d.report(ErrInvalidDelta, "no source storyIDs")
		return nil
	}
	return planMoveStories(ro, d, ids, mosxml.ChildText(d.target(), "storyID"))
}

func planMoveStories(ro *RunningOrder, d *delta, sourceIDs []string, targetID string) func() {
	var anchor *etree.Element
	if targetID != "" {
		anchor = d.findStory(ro, targetID)
	}
	sources := make([]*etree.Element, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		s := d.findStory(ro, id)
		if s == nil {
			continue
		}
		if s == anchor {
			d.report(ErrInvalidDelta, "story %s moved before itself", id)
			continue
		}
		sources = append(sources, s)
	}
	if d.failed() {
		return nil
	}
	return func() {
		for _, s := range sources {
			mosxml.Detach(s)
		}
		insertOrAppend(ro.base(), anchor, "story", sources)
	}
}

func planStorySwap(ro *RunningOrder, d *delta) func() {
	ids := mosxml.ChildTexts(d.source(), "storyID")
	if len(ids) != 2 {
		d.report(ErrInvalidDelta, "swap needs exactly two storyIDs, got %d", len(ids))
		return nil
	}
	a := d.findStory(ro, ids[0])
	b := d.findStory(ro, ids[1])
	if d.failed() {
		return nil
	}
	return func() { mosxml.Swap(a, b) }
}

// ---------- Item operations ----------

// planItemInsert inserts the items under source into the story named by
// target, before target's itemID. An empty itemID inserts at the end.
func planItemInsert(ro *RunningOrder, d *delta, target, source *etree.Element) func() {
	story := d.requireStory(ro, target)
	items := children(source, "item")
	if len(items) == 0 {
		d.report(ErrInvalidDelta, "no items to insert")
	}
	if story == nil || d.failed() {
		return nil
	}
	var anchor *etree.Element
	if id := mosxml.ChildText(target, "itemID"); id != "" {
		anchor = d.findItem(story, id)
	}
	d.checkNewChildren(story, "item", items)
	if d.failed() {
		return nil
	}
	return func() {
		insertOrAppend(story, anchor, "item", mosxml.Clone(items))
	}
}

func planItemReplace(ro *RunningOrder, d *delta, target, source *etree.Element) func() {
	story := d.requireStory(ro, target)
	itemID := mosxml.ChildText(target, "itemID")
	if itemID == "" {
		d.report(ErrInvalidDelta, "no target itemID")
	}
	items := children(source, "item")
	if len(items) == 0 {
		d.report(ErrInvalidDelta, "no replacement items")
	}
	if story == nil || d.failed() {
		return nil
	}
	old := d.findItem(story, itemID)
	if old != nil {
		d.checkNewChildren(story, "item", items, old)
	}
	if d.failed() {
		return nil
	}
	return func() {
		mosxml.Replace(old, mosxml.Clone(items)...)
	}
}

func planItemDelete(ro *RunningOrder, d *delta, target *etree.Element, ids []string) func() {
	story := d.requireStory(ro, target)
	if len(ids) == 0 {
		d.report(ErrInvalidDelta, "no items to delete")
	}
	if story == nil || d.failed() {
		return nil
	}
	victims := make([]*etree.Element, 0, len(ids))
	for _, id := range ids {
		if it := d.findItem(story, id); it != nil {
			victims = append(victims, it)
		}
	}
	if d.failed() {
		return nil
	}
	return func() {
		for _, it := range victims {
			mosxml.Detach(it)
		}
	}
}

// planItemMoveMultiple handles roItemMoveMultiple: the last itemID is the
// target and the preceding ids are moved, in order, before it. An empty
// target moves them to the end of the story.
func planItemMoveMultiple(ro *RunningOrder, d *delta) func() {
	ids := mosxml.ChildTexts(d.base, "itemID")
	if len(ids) < 2 {
		d.report(ErrInvalidDelta, "need source and target itemIDs, got %d", len(ids))
		return nil
	}
	return planMoveItems(ro, d, d.base, ids[:len(ids)-1], ids[len(ids)-1])
}

func planEAItemMove(ro *RunningOrder, d *delta) func() {
	ids := mosxml.ChildTexts(d.source(), "itemID")
	if len(ids) == 0 {
		d.report(ErrInvalidDelta, "no source itemIDs")
		return nil
	}
	return planMoveItems(ro, d, d.target(), ids, mosxml.ChildText(d.target(), "itemID"))
}

func planMoveItems(ro *RunningOrder, d *delta, holder *etree.Element, sourceIDs []string, targetID string) func() {
	story := d.requireStory(ro, holder)
	if story == nil {
		return nil
	}
	var anchor *etree.Element
	if targetID != "" {
		anchor = d.findItem(story, targetID)
	}
	sources := make([]*etree.Element, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		it := d.findItem(story, id)
		if it == nil {
			continue
		}
		if it == anchor {
			d.report(ErrInvalidDelta, "item %s moved before itself", id)
			continue
		}
		sources = append(sources, it)
	}
	if d.failed() {
		return nil
	}
	return func() {
		for _, it := range sources {
			mosxml.Detach(it)
		}
		insertOrAppend(story, anchor, "item", sources)
	}
}

func planItemSwap(ro *RunningOrder, d *delta) func() {
	story := d.requireStory(ro, d.target())
	ids := mosxml.ChildTexts(d.source(), "itemID")
	if len(ids) != 2 {
		d.report(ErrInvalidDelta, "swap needs exactly two itemIDs, got %d", len(ids))
	}
	if story == nil || d.failed() {
		return nil
	}
	a := d.findItem(story, ids[0])
	b := d.findItem(story, ids[1])
	if d.failed() {
		return nil
	}
	return func() { mosxml.Swap(a, b) }
}

// ---------- Running order operations ----------

// planMetaDataReplace copies every non-blank field of roMetadataReplace over
// the field of the same name in roCreate. Blank fields never overwrite
// existing data. Fields roCreate lacks are added ahead of the first story.
func planMetaDataReplace(ro *RunningOrder, d *delta) func() {
	var fields []*etree.Element
	for _, f := range d.base.ChildElements() {
		if mosxml.Blank(f) {
			continue
		}
		fields = append(fields, f)
	}
	return func() {
		base := ro.base()
		for _, f := range fields {
			c := f.Copy()
			if old := base.SelectElement(f.Tag); old != nil {
				mosxml.Replace(old, c)
				continue
			}
			if first := base.SelectElement("story"); first != nil {
				mosxml.InsertBefore(first, c)
				continue
			}
			base.AddChild(c)
		}
	}
}

func planReadyToAir(ro *RunningOrder, d *delta) func() {
	status := mosxml.ChildText(d.base, "roAir")
	return func() {
		meta := ro.meta()
		if old := meta.SelectElement("roAir"); old != nil {
			meta.RemoveChild(old)
		}
		meta.CreateElement("roAir").SetText(status)
	}
}

func planRunningOrderReplace(ro *RunningOrder, d *delta) func() {
	replacement := d.base.Copy()
	replacement.Tag = "roCreate"
	d.checkNewChildren(nil, "story", replacement.SelectElements("story"))
	if d.failed() {
		return nil
	}
	return func() {
		mosxml.Replace(ro.base(), replacement)
	}
}

func planRunningOrderEnd(ro *RunningOrder, d *delta) func() {
	end := d.base.Copy()
	return func() {
		ro.meta().AddChild(end)
	}
}

// planRunningOrderControl merges the non-blank mosPayload fields of a roCtrl
// into the payload of the story it names, replacing fields that exist and
// appending the rest.
func planRunningOrderControl(ro *RunningOrder, d *delta) func() {
	story := d.requireStory(ro, d.base)
	payload := d.base.FindElement("./mosExternalMetadata/mosPayload")
	if payload == nil {
		d.report(ErrInvalidDelta, "no mosPayload")
	}
	if d.failed() {
		return nil
	}
	var fields []*etree.Element
	for _, f := range payload.ChildElements() {
		if !mosxml.Blank(f) {
			fields = append(fields, f)
		}
	}
	return func() {
		dst := story.FindElement("./mosExternalMetadata/mosPayload")
		if dst == nil {
			meta := story.SelectElement("mosExternalMetadata")
			if meta == nil {
				meta = story.CreateElement("mosExternalMetadata")
			}
			dst = meta.CreateElement("mosPayload")
		}
		for _, f := range fields {
			c := f.Copy()
			if old := dst.SelectElement(f.Tag); old != nil {
				mosxml.Replace(old, c)
				continue
			}
			dst.AddChild(c)
		}
	}
}
