// Package dom provides an in-memory HTML document with the lookup and
// mutation surface the caching engine builds on: element queries by id,
// class, tag, name and CSS selector, a write API that is the document's
// only mutation path, and observer registration for mutation records.
package dom

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node aliases the underlying html node type so consumers of this package
// don't have to import golang.org/x/net/html themselves.
type Node = html.Node

// Document wraps a parsed HTML tree. All reads and writes go through the
// Document so that mutations can be observed; nodes reached through it must
// not be modified directly.
type Document struct {
	mu   sync.RWMutex
	root *html.Node // the #document node

	obsMu     sync.Mutex
	observers map[uint64]*Observer
	nextObsID uint64
}

// Parse reads and parses an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return fromNode(gq.Get(0)), nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile parses an HTML document from a file on disk.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

func fromNode(root *html.Node) *Document {
	return &Document{
		root:      root,
		observers: make(map[uint64]*Observer),
	}
}

// Root returns the document node. Callers must treat the tree as read-only.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the <body> element, or nil if the document has none.
func (d *Document) Body() *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findFirst(d.root, func(n *html.Node) bool { return n.Data == "body" })
}

// Contains reports whether n is currently attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.containsLocked(n)
}

func (d *Document) containsLocked(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// GetAttribute returns the value of the named attribute and whether it is set.
func GetAttribute(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ID returns the element's id attribute, or "".
func ID(n *html.Node) string {
	v, _ := GetAttribute(n, "id")
	return v
}

// TagName returns the element's tag name, or "" for non-element nodes.
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return n.Data
}

// ClassList returns the element's class attribute split into tokens.
func ClassList(n *html.Node) []string {
	v, _ := GetAttribute(n, "class")
	return SplitTokens(v)
}

// HasClass reports whether the element's class list contains the token.
func HasClass(n *html.Node, class string) bool {
	for _, c := range ClassList(n) {
		if c == class {
			return true
		}
	}
	return false
}

// SplitTokens splits a whitespace-delimited attribute value into tokens.
func SplitTokens(v string) []string {
	return strings.Fields(v)
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return goquery.NewDocumentFromNode(n).Text()
}

// OuterHTML renders n and its subtree back to HTML.
func OuterHTML(n *html.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	return goquery.OuterHtml(goquery.NewDocumentFromNode(n).Selection)
}

// findFirst walks root's subtree in tree order and returns the first element
// satisfying pred, or nil.
func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) && pred(c) {
			return c
		}
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// VisitElements calls visit for n itself (if it is an element) and for every
// element in its subtree, in tree order.
func VisitElements(n *html.Node, visit func(*html.Node)) {
	if n == nil {
		return
	}
	if IsElement(n) {
		visit(n)
	}
	walk(n, func(c *html.Node) bool {
		visit(c)
		return true
	})
}

// VisitSubtree is VisitElements under the document's tree read lock, for
// walks that may run concurrently with the mutation API. Nodes already
// detached from the tree still need the lock: a concurrent write could be
// the one detaching them.
func (d *Document) VisitSubtree(n *html.Node, visit func(*html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	VisitElements(n, visit)
}

// walk visits every element in root's subtree (excluding root itself) in
// tree order; returning false from visit stops the walk.
func walk(root *html.Node, visit func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c) {
			if !visit(c) {
				return false
			}
		}
		if !walk(c, visit) {
			return false
		}
	}
	return true
}
