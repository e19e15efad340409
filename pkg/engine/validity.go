package engine

import "domcache/pkg/dom"

// validElement: a cached single element is usable iff it is an element node
// still attached to the document. No identity check against a fresh query is
// made; attachment is the whole contract.
func (e *Engine) validElement(n *dom.Node) bool {
	return dom.IsElement(n) && e.doc.Contains(n)
}

// validCollection: a cached collection is usable iff it is empty (vacuously
// valid) or its first member is still attached. Checking only the first
// member is a deliberate O(1) approximation; a later member of a static
// snapshot can be stale while the entry still passes. The periodic reaper
// and the next structural invalidation bound how long that lasts.
func (e *Engine) validCollection(c *dom.Collection) bool {
	if c == nil {
		return false
	}
	first := c.First()
	if first == nil {
		return true
	}
	return e.doc.Contains(first)
}

func (e *Engine) validPayload(payload any) bool {
	switch p := payload.(type) {
	case *dom.Node:
		return e.validElement(p)
	case *dom.Collection:
		return e.validCollection(p)
	}
	return false
}
