package access

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/quickwritereader/PackGraph/utils"
)

// UIDRegistry maps (type name, uid) to an already decoded instance so a
// record that appears under several positions is materialized once.
//
// A registry belongs to one decode session unless it is handed over with
// WithUIDRegistry or ContinueFrom. A child registry reads through to its
// parent and never writes into it.
type UIDRegistry struct {
	mu     sync.RWMutex
	byType map[string]map[any]any
	parent *UIDRegistry
}

func NewUIDRegistry() *UIDRegistry {
	return &UIDRegistry{byType: make(map[string]map[any]any)}
}

// NewUIDRegistryFrom returns an empty registry whose lookups fall back to parent.
func NewUIDRegistryFrom(parent *UIDRegistry) *UIDRegistry {
	r := NewUIDRegistry()
	r.parent = parent
	return r
}

func (r *UIDRegistry) Lookup(typeName string, uid any) (any, bool) {
	r.mu.RLock()
	v, ok := r.byType[typeName][uid]
	r.mu.RUnlock()
	if ok || r.parent == nil {
		return v, ok
	}
	return r.parent.Lookup(typeName, uid)
}

func (r *UIDRegistry) Store(typeName string, uid any, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byType[typeName]
	if m == nil {
		m = make(map[any]any)
		r.byType[typeName] = m
	}
	m[uid] = v
}

// Len counts entries held by r itself, not its parent.
func (r *UIDRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.byType {
		n += len(m)
	}
	return n
}

// Types lists, sorted, the type names r itself holds entries for.
func (r *UIDRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return utils.SortKeys(r.byType)
}

func (r *UIDRegistry) ClearType(typeName string) {
	r.mu.Lock()
	delete(r.byType, typeName)
	r.mu.Unlock()
}

func (r *UIDRegistry) Clear() {
	r.mu.Lock()
	clear(r.byType)
	r.mu.Unlock()
}

// StringPool is a bounded string intern pool that can be shared by
// concurrent decode sessions. Least recently used strings are evicted.
type StringPool struct {
	cache *lru.Cache
}

func NewStringPool(size int) (*StringPool, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, MissingArgument(PhaseDecode, "NewStringPool", "%v", err)
	}
	return &StringPool{cache: c}, nil
}

// Intern returns the pooled copy of b, adding one when missing.
func (p *StringPool) Intern(b []byte) string {
	if v, ok := p.cache.Get(string(b)); ok {
		return v.(string)
	}
	s := string(b)
	p.cache.Add(s, s)
	return s
}

func (p *StringPool) Len() int {
	return p.cache.Len()
}

func (p *StringPool) Purge() {
	p.cache.Purge()
}
