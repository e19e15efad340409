package watch

import (
	"strings"

	"domcache/pkg/cache"
	"domcache/pkg/dom"
)

// signal is the reduction of one mutation batch: the discriminator fragments
// whose cache entries must go, plus the escalation flag for selector-kind
// keys (arbitrary selectors cannot be mapped back to structural deltas, so
// any structural change clears them all).
//
// Attribute fragments come straight off the records, whose values were
// captured under the tree write lock; only structural scans touch nodes, and
// those run under the tree read lock via VisitSubtree.
type signal struct {
	doc *dom.Document

	ids     map[string]struct{}
	classes map[string]struct{}
	names   map[string]struct{}
	tags    map[string]struct{}

	selectorClear bool
	fragments     map[string]struct{} // substring-matched against selector-kind key values
}

func newSignal(doc *dom.Document) *signal {
	return &signal{
		doc:       doc,
		ids:       make(map[string]struct{}),
		classes:   make(map[string]struct{}),
		names:     make(map[string]struct{}),
		tags:      make(map[string]struct{}),
		fragments: make(map[string]struct{}),
	}
}

func (s *signal) empty() bool {
	return !s.selectorClear &&
		len(s.ids) == 0 && len(s.classes) == 0 &&
		len(s.names) == 0 && len(s.tags) == 0 &&
		len(s.fragments) == 0
}

func add(set map[string]struct{}, vals ...string) {
	for _, v := range vals {
		if v != "" {
			set[v] = struct{}{}
		}
	}
}

// addIDRecords folds records from the id-keyed observer: id attribute flips
// contribute the old and new value, structural changes contribute the ids of
// every added/removed element and its descendants.
func (s *signal) addIDRecords(recs []dom.MutationRecord) {
	for _, rec := range recs {
		switch rec.Type {
		case dom.MutationAttributes:
			add(s.ids, rec.OldValue, rec.Value)
		case dom.MutationChildList:
			s.scanStructural(rec, func(n *dom.Node) {
				add(s.ids, dom.ID(n))
			})
		}
	}
}

// addCollectionRecords folds records from the class/tag/name observer.
// Class changes are diffed token-wise: only tokens entering or leaving the
// list are affected, not every token in the attribute.
func (s *signal) addCollectionRecords(recs []dom.MutationRecord) {
	for _, rec := range recs {
		switch rec.Type {
		case dom.MutationAttributes:
			switch rec.AttributeName {
			case "class":
				add(s.classes, tokenDiff(rec.OldValue, rec.Value)...)
			case "name":
				add(s.names, rec.OldValue, rec.Value)
			}
		case dom.MutationChildList:
			s.scanStructural(rec, func(n *dom.Node) {
				add(s.classes, dom.ClassList(n)...)
				name, _ := dom.GetAttribute(n, "name")
				add(s.names, name)
				add(s.tags, dom.TagName(n))
			})
		}
	}
}

// addSelectorRecords folds records from the wide-filter selector observer.
// Structural changes escalate to clearing every selector-kind key; attribute
// changes contribute fragments matched by substring against selector text.
func (s *signal) addSelectorRecords(recs []dom.MutationRecord) {
	for _, rec := range recs {
		switch rec.Type {
		case dom.MutationChildList:
			s.selectorClear = true
		case dom.MutationAttributes:
			add(s.fragments, rec.AttributeName)
			switch rec.AttributeName {
			case "class":
				add(s.fragments, tokenDiff(rec.OldValue, rec.Value)...)
			default:
				add(s.fragments, rec.OldValue, rec.Value)
			}
		}
	}
}

func (s *signal) scanStructural(rec dom.MutationRecord, visit func(*dom.Node)) {
	for _, n := range rec.AddedNodes {
		s.doc.VisitSubtree(n, visit)
	}
	for _, n := range rec.RemovedNodes {
		s.doc.VisitSubtree(n, visit)
	}
}

// matches decides whether the cache key is affected by this signal.
func (s *signal) matches(k cache.Key) bool {
	switch k.Kind {
	case cache.KindID:
		_, hit := s.ids[k.Value]
		return hit
	case cache.KindClass:
		_, hit := s.classes[k.Value]
		return hit
	case cache.KindTag:
		_, hit := s.tags[k.Value]
		return hit
	case cache.KindName:
		_, hit := s.names[k.Value]
		return hit
	}
	if !k.Kind.IsSelectorKind() {
		return false
	}
	if s.selectorClear {
		return true
	}
	for f := range s.fragments {
		if strings.Contains(k.Value, f) || (k.Scope != "" && strings.Contains(k.Scope, f)) {
			return true
		}
	}
	return false
}

// tokenDiff returns the symmetric difference of two whitespace-delimited
// token lists: tokens present in one but not the other.
func tokenDiff(oldVal, newVal string) []string {
	oldTokens := dom.SplitTokens(oldVal)
	newTokens := dom.SplitTokens(newVal)

	oldSet := make(map[string]struct{}, len(oldTokens))
	for _, t := range oldTokens {
		oldSet[t] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newTokens))
	for _, t := range newTokens {
		newSet[t] = struct{}{}
	}

	var diff []string
	for _, t := range oldTokens {
		if _, ok := newSet[t]; !ok {
			diff = append(diff, t)
		}
	}
	for _, t := range newTokens {
		if _, ok := oldSet[t]; !ok {
			diff = append(diff, t)
		}
	}
	return diff
}
