package engine

import (
	"fmt"
	"strings"

	"domcache/pkg/cache"
	"domcache/pkg/dom"
)

// CollectionKind selects which native collection lookup to dispatch.
type CollectionKind string

const (
	CollectionClass CollectionKind = "class"
	CollectionTag   CollectionKind = "tag"
	CollectionName  CollectionKind = "name"
)

func (k CollectionKind) cacheKind() (cache.Kind, bool) {
	switch k {
	case CollectionClass:
		return cache.KindClass, true
	case CollectionTag:
		return cache.KindTag, true
	case CollectionName:
		return cache.KindName, true
	}
	return "", false
}

// LookupByID returns the element with the given id, or nil. Results are
// cached under the id until a mutation or the reaper invalidates them.
func (e *Engine) LookupByID(id string) *dom.Node {
	if strings.TrimSpace(id) == "" {
		e.log.Warn("LookupByID called with blank id, returning nil")
		return nil
	}
	key := cache.Key{Kind: cache.KindID, Value: id}
	return e.lookupElement(key, func() *dom.Node {
		return e.doc.GetElementByID(id)
	})
}

// LookupCollection returns the live collection for a class, tag or name
// value. The returned collection is never nil; misses and unknown kinds
// yield an empty one.
func (e *Engine) LookupCollection(kind CollectionKind, value string) *dom.Collection {
	ck, ok := kind.cacheKind()
	if !ok {
		e.log.Warnf("LookupCollection called with unknown kind %q, returning empty collection", kind)
		return dom.Empty(e.doc)
	}
	if strings.TrimSpace(value) == "" {
		e.log.Warnf("LookupCollection(%s) called with blank value, returning empty collection", kind)
		return dom.Empty(e.doc)
	}
	key := cache.Key{Kind: ck, Value: value}
	return e.lookupCollection(key, func() *dom.Collection {
		switch kind {
		case CollectionClass:
			return e.doc.GetElementsByClassName(value)
		case CollectionTag:
			return e.doc.GetElementsByTagName(value)
		default:
			return e.doc.GetElementsByName(value)
		}
	})
}

// LookupSelector returns the first element matching the CSS selector, or
// nil. A selector that fails to parse is logged and treated as not found,
// never surfaced as an error.
func (e *Engine) LookupSelector(selector string) *dom.Node {
	if !e.checkSelector("LookupSelector", selector) {
		return nil
	}
	key := cache.Key{Kind: cache.KindSelectorSingle, Value: selector}
	return e.lookupElement(key, func() *dom.Node {
		n, err := e.doc.QuerySelector(selector)
		if err != nil {
			return nil
		}
		return n
	})
}

// LookupSelectorAll returns a static snapshot of every element matching the
// CSS selector. Invalid selectors yield an empty collection.
func (e *Engine) LookupSelectorAll(selector string) *dom.Collection {
	if !e.checkSelector("LookupSelectorAll", selector) {
		return dom.Empty(e.doc)
	}
	key := cache.Key{Kind: cache.KindSelectorAll, Value: selector}
	return e.lookupCollection(key, func() *dom.Collection {
		c, err := e.doc.QuerySelectorAll(selector)
		if err != nil {
			return dom.Empty(e.doc)
		}
		return c
	})
}

// LookupScoped is LookupSelector restricted to the descendants of container,
// which may be a *dom.Node or a selector string resolved eagerly. An absent
// container yields nil, not an error.
func (e *Engine) LookupScoped(container any, selector string) *dom.Node {
	if !e.checkSelector("LookupScoped", selector) {
		return nil
	}
	root, scope, ok := e.resolveContainer(container)
	if !ok {
		return nil
	}
	key := cache.Key{Kind: cache.KindScopedSingle, Value: selector, Scope: scope}
	return e.lookupElement(key, func() *dom.Node {
		n, err := e.doc.QuerySelectorFrom(root, selector)
		if err != nil {
			return nil
		}
		return n
	})
}

// LookupScopedAll is LookupSelectorAll restricted to the descendants of
// container. An absent container yields an empty collection.
func (e *Engine) LookupScopedAll(container any, selector string) *dom.Collection {
	if !e.checkSelector("LookupScopedAll", selector) {
		return dom.Empty(e.doc)
	}
	root, scope, ok := e.resolveContainer(container)
	if !ok {
		return dom.Empty(e.doc)
	}
	key := cache.Key{Kind: cache.KindScopedAll, Value: selector, Scope: scope}
	return e.lookupCollection(key, func() *dom.Collection {
		c, err := e.doc.QuerySelectorAllFrom(root, selector)
		if err != nil {
			return dom.Empty(e.doc)
		}
		return c
	})
}

// checkSelector validates selector syntax up front so the cache never holds
// keys that can't be queried. Returns false (with a warning logged) for
// blank or unparsable selectors.
func (e *Engine) checkSelector(op, selector string) bool {
	if strings.TrimSpace(selector) == "" {
		e.log.Warnf("%s called with blank selector", op)
		return false
	}
	if _, err := dom.CompileSelector(selector); err != nil {
		e.log.WithField("selector", selector).Warnf("%s: invalid selector: %v", op, err)
		return false
	}
	return true
}

// resolveContainer resolves the scoped-lookup container to an element plus
// the scope component of the cache key.
func (e *Engine) resolveContainer(container any) (*dom.Node, string, bool) {
	switch c := container.(type) {
	case nil:
		e.log.Warn("Scoped lookup with nil container, returning empty result")
		return nil, "", false
	case *dom.Node:
		if c == nil {
			e.log.Warn("Scoped lookup with nil container, returning empty result")
			return nil, "", false
		}
		return c, fmt.Sprintf("%p", c), true
	case string:
		root := e.LookupSelector(c)
		if root == nil {
			e.log.WithField("container", c).Debug("Scoped lookup container not found, returning empty result")
			return nil, "", false
		}
		return root, c, true
	default:
		e.log.Warnf("Scoped lookup with unsupported container type %T, returning empty result", container)
		return nil, "", false
	}
}

// lookupElement is the dispatch path shared by all single-element lookups:
// validity-checked cache hit, else a singleflight-collapsed live query whose
// non-nil result repopulates the cache. After Destroy the cache is skipped
// entirely and every call is a live query.
func (e *Engine) lookupElement(key cache.Key, query func() *dom.Node) *dom.Node {
	if e.destroyed.Load() {
		return query()
	}

	if payload, ok := e.store.Get(key); ok {
		if n, isNode := payload.(*dom.Node); isNode && e.validElement(n) {
			e.stats.Hit()
			return n
		}
		e.store.Delete(key)
	}
	e.stats.Miss()

	v, _, _ := e.flight.Do(key.String(), func() (any, error) {
		n := query()
		if n != nil {
			e.cacheResult(key, n)
		}
		return n, nil
	})
	n, _ := v.(*dom.Node)
	return n
}

// cacheResult stores a fresh lookup result unless the engine has been
// destroyed. Destroy can land between the outer destroyed check and the
// store write, after DeleteAll has already run; the re-check and undo keep
// the store empty in that window.
func (e *Engine) cacheResult(key cache.Key, payload any) {
	if e.destroyed.Load() {
		return
	}
	e.store.Set(key, payload)
	if e.destroyed.Load() {
		e.store.Delete(key)
	}
}

// lookupCollection mirrors lookupElement for collection payloads. Empty
// collections are cached too: they are vacuously valid and must behave
// identically whether served from cache or a fresh miss.
func (e *Engine) lookupCollection(key cache.Key, query func() *dom.Collection) *dom.Collection {
	if e.destroyed.Load() {
		return query()
	}

	if payload, ok := e.store.Get(key); ok {
		if c, isColl := payload.(*dom.Collection); isColl && e.validCollection(c) {
			e.stats.Hit()
			return c
		}
		e.store.Delete(key)
	}
	e.stats.Miss()

	v, _, _ := e.flight.Do(key.String(), func() (any, error) {
		c := query()
		if c == nil {
			c = dom.Empty(e.doc)
		}
		e.cacheResult(key, c)
		return c, nil
	})
	return v.(*dom.Collection)
}
