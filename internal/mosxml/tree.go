// Package mosxml adapts beevik/etree trees to the lookups and edits the MOS
// merge engine needs: identifier-addressed children, positional inserts,
// swaps and stable serialization.
package mosxml

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// ErrNoRoot is returned by Parse when the input holds no root element.
var ErrNoRoot = errors.New("mosxml: document has no root element")

// Parse reads data into a new document. Declared charsets are trusted as-is;
// MOS files are delivered as UTF-8 or ASCII-compatible text.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("mosxml: parse: %w", err)
	}
	if doc.Root() == nil {
		return nil, ErrNoRoot
	}
	return doc, nil
}

// Serialize writes doc with two-space indentation. The document itself is
// not modified.
func Serialize(doc *etree.Document) ([]byte, error) {
	out := doc.Copy()
	out.Indent(2)
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("mosxml: serialize: %w", err)
	}
	return b, nil
}

// ---------- Lookups ----------

// ChildText returns the trimmed text of the first child of e named tag, or ""
// when the child is absent.
func ChildText(e *etree.Element, tag string) string {
	if e == nil {
		return ""
	}
	c := e.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// ChildTexts returns the trimmed text of every child of e named tag, in
// document order. Empty children yield "".
func ChildTexts(e *etree.Element, tag string) []string {
	if e == nil {
		return nil
	}
	children := e.SelectElements(tag)
	out := make([]string, 0, len(children))
	for _, c := range children {
		out = append(out, strings.TrimSpace(c.Text()))
	}
	return out
}

// IDOf returns the identifier of a story or item element, read from its
// "<tag>ID" child ("storyID" for a story, "itemID" for an item).
func IDOf(e *etree.Element) string {
	if e == nil {
		return ""
	}
	return ChildText(e, e.Tag+"ID")
}

// MatchID reports whether two MOS identifiers address the same element.
// Newsroom systems often qualify ids with comma-separated prefixes, so ids
// also match when their final comma-separated segments are equal.
func MatchID(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return lastSegment(a) == lastSegment(b)
}

func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, ','); i >= 0 {
		return id[i+1:]
	}
	return id
}

// FindChild returns the first child of parent named tag whose identifier
// matches id. With an empty id the first child named tag is returned.
func FindChild(parent *etree.Element, tag, id string) *etree.Element {
	if parent == nil {
		return nil
	}
	for _, c := range parent.SelectElements(tag) {
		if id == "" || MatchID(IDOf(c), id) {
			return c
		}
	}
	return nil
}

// Blank reports whether e carries no content: no child elements and only
// whitespace text.
func Blank(e *etree.Element) bool {
	return len(e.ChildElements()) == 0 && strings.TrimSpace(e.Text()) == ""
}

// ---------- Edits ----------

// Detach removes node from its parent, if it has one.
func Detach(node *etree.Element) {
	if p := node.Parent(); p != nil {
		p.RemoveChildAt(node.Index())
	}
}

// InsertBefore inserts nodes, in order, immediately before anchor. Nodes that
// are attached elsewhere are detached first.
func InsertBefore(anchor *etree.Element, nodes ...*etree.Element) {
	parent := anchor.Parent()
	for _, n := range nodes {
		Detach(n)
		parent.InsertChildAt(anchor.Index(), n)
	}
}

// AppendAfterLast inserts nodes, in order, after the last child of parent
// named tag. When parent has no such child the nodes are appended at the end.
func AppendAfterLast(parent *etree.Element, tag string, nodes ...*etree.Element) {
	for _, n := range nodes {
		Detach(n)
		siblings := parent.SelectElements(tag)
		if len(siblings) == 0 {
			parent.AddChild(n)
			continue
		}
		parent.InsertChildAt(siblings[len(siblings)-1].Index()+1, n)
	}
}

// Replace puts nodes at the position of old and removes old.
func Replace(old *etree.Element, nodes ...*etree.Element) {
	InsertBefore(old, nodes...)
	Detach(old)
}

// Swap exchanges the positions of two children of the same parent.
func Swap(a, b *etree.Element) {
	if a == b {
		return
	}
	parent := a.Parent()
	ia, ib := a.Index(), b.Index()
	if ia > ib {
		a, b = b, a
		ia, ib = ib, ia
	}
	parent.RemoveChildAt(ib)
	parent.RemoveChildAt(ia)
	parent.InsertChildAt(ia, b)
	parent.InsertChildAt(ib, a)
}

// Clone returns detached deep copies of elems.
func Clone(elems []*etree.Element) []*etree.Element {
	out := make([]*etree.Element, len(elems))
	for i, e := range elems {
		out[i] = e.Copy()
	}
	return out
}
