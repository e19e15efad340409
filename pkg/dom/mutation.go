package dom

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MutationType discriminates mutation records.
type MutationType string

const (
	MutationAttributes MutationType = "attributes"
	MutationChildList  MutationType = "childList"
)

// MutationRecord describes a single observed change to the tree.
//
// Both attribute values are captured while the tree write lock is held, so
// consumers can derive deltas from the record alone without reading the live
// tree (which may have moved on by delivery time).
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	AttributeName string       // attributes records only
	OldValue      string       // previous attribute value; "" if unset or old-value capture disabled
	Value         string       // attribute value after the change; "" for removals
	AddedNodes    []*html.Node // childList records only
	RemovedNodes  []*html.Node // childList records only
}

// ObserveOptions selects which mutations an observer receives.
type ObserveOptions struct {
	Attributes        bool
	AttributeFilter   []string // empty = all attributes
	AttributeOldValue bool
	ChildList         bool
	Subtree           bool // deliver records for descendants of the observed target
}

// Observer receives batched mutation records from a Document. Consumers wait
// on Notify and drain pending records with TakeRecords.
type Observer struct {
	id     uint64
	doc    *Document
	target *html.Node
	opts   ObserveOptions

	mu           sync.Mutex
	queue        []MutationRecord
	notify       chan struct{}
	disconnected bool
}

// Observe registers an observer rooted at target (nil = whole document).
func (d *Document) Observe(target *html.Node, opts ObserveOptions) *Observer {
	if target == nil {
		target = d.root
	}
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.nextObsID++
	o := &Observer{
		id:     d.nextObsID,
		doc:    d,
		target: target,
		opts:   opts,
		notify: make(chan struct{}, 1),
	}
	d.observers[o.id] = o
	return o
}

// Notify returns a channel that receives a signal whenever new records are
// queued. The channel is never closed; use TakeRecords to drain.
func (o *Observer) Notify() <-chan struct{} {
	return o.notify
}

// TakeRecords drains and returns all pending records.
func (o *Observer) TakeRecords() []MutationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	recs := o.queue
	o.queue = nil
	return recs
}

// Disconnect stops delivery and discards pending records.
func (o *Observer) Disconnect() {
	o.doc.obsMu.Lock()
	delete(o.doc.observers, o.id)
	o.doc.obsMu.Unlock()

	o.mu.Lock()
	o.disconnected = true
	o.queue = nil
	o.mu.Unlock()
}

func (o *Observer) deliver(rec MutationRecord) {
	switch rec.Type {
	case MutationAttributes:
		if !o.opts.Attributes {
			return
		}
		if len(o.opts.AttributeFilter) > 0 && !slices.Contains(o.opts.AttributeFilter, rec.AttributeName) {
			return
		}
		if !o.opts.AttributeOldValue {
			rec.OldValue = ""
		}
	case MutationChildList:
		if !o.opts.ChildList {
			return
		}
	}

	o.mu.Lock()
	if o.disconnected {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, rec)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// dispatch fans a record out to every observer whose scope covers the target.
// Called without d.mu held so observer callbacks can re-enter the document.
func (d *Document) dispatch(rec MutationRecord) {
	d.obsMu.Lock()
	obs := make([]*Observer, 0, len(d.observers))
	for _, o := range d.observers {
		obs = append(obs, o)
	}
	d.obsMu.Unlock()

	for _, o := range obs {
		if !o.covers(rec.Target) {
			continue
		}
		o.deliver(rec)
	}
}

func (o *Observer) covers(target *html.Node) bool {
	if target == o.target {
		return true
	}
	if !o.opts.Subtree {
		return false
	}
	for p := target; p != nil; p = p.Parent {
		if p == o.target {
			return true
		}
	}
	return false
}

// --- Write API ---
//
// These are the only sanctioned ways to change the tree; each emits a
// mutation record after releasing the tree lock.

// SetAttribute sets key to val on n and emits an attributes record carrying
// the previous value.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	d.mu.Lock()
	old, existed := GetAttribute(n, key)
	if existed && old == val {
		d.mu.Unlock()
		return
	}
	setAttr(n, key, val)
	d.mu.Unlock()

	d.dispatch(MutationRecord{
		Type:          MutationAttributes,
		Target:        n,
		AttributeName: key,
		OldValue:      old,
		Value:         val,
	})
}

// RemoveAttribute removes key from n if present.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	d.mu.Lock()
	old, existed := GetAttribute(n, key)
	if !existed {
		d.mu.Unlock()
		return
	}
	removeAttr(n, key)
	d.mu.Unlock()

	d.dispatch(MutationRecord{
		Type:          MutationAttributes,
		Target:        n,
		AttributeName: key,
		OldValue:      old,
	})
}

// SetID sets the element's id attribute.
func (d *Document) SetID(n *html.Node, id string) {
	d.SetAttribute(n, "id", id)
}

// AddClass adds the given tokens to the element's class list.
func (d *Document) AddClass(n *html.Node, classes ...string) {
	list := ClassList(n)
	for _, c := range classes {
		if !slices.Contains(list, c) {
			list = append(list, c)
		}
	}
	d.SetAttribute(n, "class", strings.Join(list, " "))
}

// RemoveClass removes the given tokens from the element's class list.
func (d *Document) RemoveClass(n *html.Node, classes ...string) {
	list := ClassList(n)
	kept := list[:0]
	for _, c := range list {
		if !slices.Contains(classes, c) {
			kept = append(kept, c)
		}
	}
	d.SetAttribute(n, "class", strings.Join(kept, " "))
}

// ToggleClass adds the token if absent, removes it if present. Returns true
// if the token is present afterwards.
func (d *Document) ToggleClass(n *html.Node, class string) bool {
	if HasClass(n, class) {
		d.RemoveClass(n, class)
		return false
	}
	d.AddClass(n, class)
	return true
}

// AppendChild attaches child as the last child of parent. A child already in
// the tree is detached from its old parent first (emitting a removal record
// there, as a second childList record).
func (d *Document) AppendChild(parent, child *html.Node) error {
	d.mu.Lock()
	for p := parent; p != nil; p = p.Parent {
		if p == child {
			d.mu.Unlock()
			return fmt.Errorf("append child: new child is an ancestor of the parent")
		}
	}
	var removedFrom *html.Node
	if child.Parent != nil {
		removedFrom = child.Parent
		child.Parent.RemoveChild(child)
	}
	parent.AppendChild(child)
	d.mu.Unlock()

	if removedFrom != nil {
		d.dispatch(MutationRecord{
			Type:         MutationChildList,
			Target:       removedFrom,
			RemovedNodes: []*html.Node{child},
		})
	}
	d.dispatch(MutationRecord{
		Type:       MutationChildList,
		Target:     parent,
		AddedNodes: []*html.Node{child},
	})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	d.mu.Lock()
	if child.Parent != parent {
		d.mu.Unlock()
		return fmt.Errorf("remove child: node is not a child of the given parent")
	}
	parent.RemoveChild(child)
	d.mu.Unlock()

	d.dispatch(MutationRecord{
		Type:         MutationChildList,
		Target:       parent,
		RemovedNodes: []*html.Node{child},
	})
	return nil
}

// ReplaceChildren removes all of parent's children and appends the given
// nodes, emitting a single childList record for the whole swap.
func (d *Document) ReplaceChildren(parent *html.Node, children ...*html.Node) {
	d.mu.Lock()
	var removed []*html.Node
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		parent.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		parent.AppendChild(c)
	}
	d.mu.Unlock()

	d.dispatch(MutationRecord{
		Type:         MutationChildList,
		Target:       parent,
		AddedNodes:   children,
		RemovedNodes: removed,
	})
}

// CreateElement builds a detached element node with the given tag and
// alternating key/value attribute pairs.
func CreateElement(tag string, attrPairs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrPairs); i += 2 {
		setAttr(n, attrPairs[i], attrPairs[i+1])
	}
	return n
}

// CreateTextNode builds a detached text node.
func CreateTextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
