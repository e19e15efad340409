package dom

import "golang.org/x/net/html"

// Collection is a read-only view over a set of elements. Collections come in
// two flavors: live views (class/tag/name lookups) re-evaluate membership
// against the current tree on every access, while static snapshots
// (selector-all lookups) keep the member list captured at creation time.
//
// For live collections, Length and indexed reads always reflect the current
// tree; only the first member's attachment is consulted when the caching
// layer judges whether a cached collection is still usable.
type Collection struct {
	doc    *Document
	root   *html.Node
	match  func(*html.Node) bool // nil for static collections
	static []*html.Node
}

func newLive(doc *Document, root *html.Node, match func(*html.Node) bool) *Collection {
	return &Collection{doc: doc, root: root, match: match}
}

func newStatic(doc *Document, nodes []*html.Node) *Collection {
	return &Collection{doc: doc, static: nodes}
}

// Empty returns a collection with no members.
func Empty(doc *Document) *Collection {
	return newStatic(doc, nil)
}

// IsLive reports whether the collection re-evaluates membership on access.
func (c *Collection) IsLive() bool {
	return c.match != nil
}

func (c *Collection) snapshot() []*html.Node {
	if c == nil {
		return nil
	}
	if c.match == nil {
		return c.static
	}
	c.doc.mu.RLock()
	defer c.doc.mu.RUnlock()
	var nodes []*html.Node
	walk(c.root, func(n *html.Node) bool {
		if c.match(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// Length returns the current number of members.
func (c *Collection) Length() int {
	if c == nil {
		return 0
	}
	return len(c.snapshot())
}

// IsEmpty reports whether the collection has no members.
func (c *Collection) IsEmpty() bool {
	return c.Length() == 0
}

// At returns the member at index i, or nil if out of range. Negative
// indices count from the end.
func (c *Collection) At(i int) *html.Node {
	if c == nil {
		return nil
	}
	nodes := c.snapshot()
	if i < 0 {
		i += len(nodes)
	}
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}

// First returns the first member, or nil if empty.
func (c *Collection) First() *html.Node {
	return c.At(0)
}

// Last returns the last member, or nil if empty.
func (c *Collection) Last() *html.Node {
	return c.At(-1)
}

// ToSlice returns the members as a plain slice.
func (c *Collection) ToSlice() []*html.Node {
	if c == nil {
		return nil
	}
	nodes := c.snapshot()
	out := make([]*html.Node, len(nodes))
	copy(out, nodes)
	return out
}

// Each calls fn for every member in order.
func (c *Collection) Each(fn func(i int, n *html.Node)) {
	for i, n := range c.snapshot() {
		fn(i, n)
	}
}

// Map collects fn's result for every member.
func (c *Collection) Map(fn func(i int, n *html.Node) string) []string {
	nodes := c.snapshot()
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = fn(i, n)
	}
	return out
}

// Filter returns the members satisfying pred.
func (c *Collection) Filter(pred func(n *html.Node) bool) []*html.Node {
	var out []*html.Node
	for _, n := range c.snapshot() {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the first member satisfying pred, or nil.
func (c *Collection) Find(pred func(n *html.Node) bool) *html.Node {
	for _, n := range c.snapshot() {
		if pred(n) {
			return n
		}
	}
	return nil
}

// Some reports whether any member satisfies pred.
func (c *Collection) Some(pred func(n *html.Node) bool) bool {
	return c.Find(pred) != nil
}

// Every reports whether all members satisfy pred. True for an empty
// collection.
func (c *Collection) Every(pred func(n *html.Node) bool) bool {
	for _, n := range c.snapshot() {
		if !pred(n) {
			return false
		}
	}
	return true
}
