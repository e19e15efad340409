package dom

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// selectorCache memoizes compiled CSS selectors so repeated lookups don't
// re-parse the selector text.
var selectorCache sync.Map // selector string -> cascadia.Selector

// CompileSelector compiles a CSS selector, returning a cached compilation
// for selectors seen before. Invalid selectors return an error; the failed
// compilation is not cached.
func CompileSelector(selector string) (cascadia.Selector, error) {
	if s, ok := selectorCache.Load(selector); ok {
		return s.(cascadia.Selector), nil
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}
	selectorCache.Store(selector, s)
	return s, nil
}

// GetElementByID returns the first element in tree order with the given id,
// or nil.
func (d *Document) GetElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findFirst(d.root, func(n *html.Node) bool { return ID(n) == id })
}

// GetElementsByClassName returns a live collection of elements carrying the
// given class token.
func (d *Document) GetElementsByClassName(class string) *Collection {
	return newLive(d, d.root, func(n *html.Node) bool { return HasClass(n, class) })
}

// GetElementsByTagName returns a live collection of elements with the given
// tag name. "*" matches every element.
func (d *Document) GetElementsByTagName(tag string) *Collection {
	if tag == "*" {
		return newLive(d, d.root, func(n *html.Node) bool { return true })
	}
	return newLive(d, d.root, func(n *html.Node) bool { return n.Data == tag })
}

// GetElementsByName returns a live collection of elements whose name
// attribute equals the given value.
func (d *Document) GetElementsByName(name string) *Collection {
	return newLive(d, d.root, func(n *html.Node) bool {
		v, _ := GetAttribute(n, "name")
		return v == name
	})
}

// QuerySelector returns the first element matching the CSS selector, or nil.
func (d *Document) QuerySelector(selector string) (*html.Node, error) {
	return d.QuerySelectorFrom(nil, selector)
}

// QuerySelectorFrom is QuerySelector scoped to container's descendants
// (container itself is never matched). A nil container means the whole
// document.
func (d *Document) QuerySelectorFrom(container *html.Node, selector string) (*html.Node, error) {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	if container == nil {
		container = d.root
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *html.Node
	walk(container, func(n *html.Node) bool {
		if sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found, nil
}

// QuerySelectorAll returns a static snapshot of all elements matching the
// CSS selector, in tree order. Unlike the live collections, the snapshot
// does not track later tree changes.
func (d *Document) QuerySelectorAll(selector string) (*Collection, error) {
	return d.QuerySelectorAllFrom(nil, selector)
}

// QuerySelectorAllFrom is QuerySelectorAll scoped to container's descendants.
func (d *Document) QuerySelectorAllFrom(container *html.Node, selector string) (*Collection, error) {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	if container == nil {
		container = d.root
	}
	d.mu.RLock()
	var nodes []*html.Node
	walk(container, func(n *html.Node) bool {
		if sel.Match(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	d.mu.RUnlock()
	return newStatic(d, nodes), nil
}
