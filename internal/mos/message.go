// Package mos models MOS running-order messages: parsing and classification,
// the RunningOrder document with its stories and items, and the merge engine
// that applies delta messages to a running order.
package mos

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/dusk-indust/mosromgr/internal/mosxml"
)

// Message is one parsed and classified MOS document. A delta Message is
// consumed by Apply and must not be reused afterwards for another merge.
type Message struct {
	kind Kind
	doc  *etree.Document
	base *etree.Element

	messageID    int
	hasMessageID bool
}

// Parse parses data as XML and classifies it. Malformed XML yields an error
// wrapping ErrInvalidXML; well-formed but unclassifiable input yields
// ErrUnknownType or ErrIgnoredType.
func Parse(data []byte) (*Message, error) {
	doc, err := mosxml.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
	}
	kind, err := Classify(doc.Root())
	if err != nil {
		return nil, err
	}
	return newMessage(kind, doc), nil
}

func newMessage(kind Kind, doc *etree.Document) *Message {
	root := doc.Root()
	m := &Message{
		kind: kind,
		doc:  doc,
		base: root.SelectElement(kind.BaseTag()),
	}
	if id, err := strconv.Atoi(mosxml.ChildText(root, "messageID")); err == nil {
		m.messageID = id
		m.hasMessageID = true
	}
	return m
}

// Kind returns the message's classification.
func (m *Message) Kind() Kind { return m.kind }

// MessageID returns the numeric messageID, the ordering key within a
// programme. It is zero when HasMessageID is false.
func (m *Message) MessageID() int { return m.messageID }

// HasMessageID reports whether the document carried a numeric messageID.
func (m *Message) HasMessageID() bool { return m.hasMessageID }

// ROID returns the running order id the message belongs to.
func (m *Message) ROID() string { return mosxml.ChildText(m.base, "roID") }

// MOSID returns the sending MOS device id, if present.
func (m *Message) MOSID() string { return mosxml.ChildText(m.doc.Root(), "mosID") }

// NCSID returns the newsroom system id, if present.
func (m *Message) NCSID() string { return mosxml.ChildText(m.doc.Root(), "ncsID") }

// Slug returns the running order slug carried by the message, if any.
func (m *Message) Slug() string { return mosxml.ChildText(m.base, "roSlug") }

// Completed reports whether the document is a running order that has had an
// end-of-programme message merged into it.
func (m *Message) Completed() bool {
	return m.doc.Root().FindElement(completedPath) != nil
}

// Base returns the element carrying the message body (roCreate,
// roStoryInsert, roElementAction, ...).
func (m *Message) Base() *etree.Element { return m.base }

// XML serializes the message document.
func (m *Message) XML() ([]byte, error) { return mosxml.Serialize(m.doc) }

func (m *Message) String() string {
	if m.Completed() {
		return fmt.Sprintf("%s %d (completed)", m.kind, m.messageID)
	}
	return fmt.Sprintf("%s %d", m.kind, m.messageID)
}
