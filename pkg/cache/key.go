package cache

import "fmt"

// Kind namespaces cache keys by lookup flavor.
type Kind string

const (
	KindID             Kind = "id"
	KindClass          Kind = "className"
	KindTag            Kind = "tagName"
	KindName           Kind = "name"
	KindSelectorSingle Kind = "selector:single"
	KindSelectorAll    Kind = "selector:all"
	KindScopedSingle   Kind = "scoped:single"
	KindScopedAll      Kind = "scoped:all"
)

// IsSelectorKind reports whether keys of this kind carry an arbitrary CSS
// selector as their value. Selector values cannot be matched exactly against
// mutation fragments, so invalidation treats these kinds more coarsely.
func (k Kind) IsSelectorKind() bool {
	switch k {
	case KindSelectorSingle, KindSelectorAll, KindScopedSingle, KindScopedAll:
		return true
	}
	return false
}

// Key identifies one cache entry: the lookup kind, its discriminator value,
// and for scoped lookups an identifier for the container. Keys are
// comparable and used directly as map keys.
type Key struct {
	Kind  Kind
	Value string
	Scope string // scoped kinds only
}

// String renders the composite form used in snapshots and logs, e.g.
// "id:submitBtn" or "scoped:all:0xc0000a2000:.item".
func (k Key) String() string {
	if k.Scope != "" {
		return fmt.Sprintf("%s:%s:%s", k.Kind, k.Scope, k.Value)
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.Value)
}
