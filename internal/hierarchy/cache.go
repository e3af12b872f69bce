package hierarchy

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
)

// entryKind distinguishes the two cache entry shapes of spec.md ยง4.9.
type entryKind int

const (
	entryPreprocess entryKind = iota
	entryGroupedChildren
)

// cacheEntry is one slot in the per-parent cache: either a hot stream of
// source nodes awaiting pipeline processing, or a cold materialized child
// list belonging to a grouping node (spec.md ยง3.4, ยง4.9).
type cacheEntry struct {
	kind entryKind

	// entryPreprocess
	sourceNodes []*SourceNode
	sourceErr   error

	// entryGroupedChildren
	children []*FinalNode
}

// cacheKey is the composite lookup key of spec.md ยง4.9: parent key path,
// instance filter, and row-limit all participate.
type cacheKey struct {
	parentPath string
	filter     string
	limit      int
}

func makeCacheKey(parentKeys []NodeKey, filter *InstanceFilter, limit int) cacheKey {
	return cacheKey{
		parentPath: NodeKeyPathString(parentKeys),
		filter:     filter.key(),
		limit:      limit,
	}
}

// Cache is the per-parent LRU cache of spec.md ยง3.4/ยง4.9. It is backed by
// an access-ordered map: every read re-inserts its key at the back so the
// front of the map is always the least-recently-used entry, giving O(1)
// eviction without a separate linked list.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[cacheKey, *cacheEntry]

	// owners records, for every grouping node's materialized-children key,
	// the node whose pipeline.level re-derivation recreates it: nil for a
	// root-level grouping node (re-derived via pl.level(ctx, nil, ...)), or
	// the enclosing grouping ProcessedNode for a nested one. It is kept
	// outside the LRU-evicted entries map so an evicted children list can
	// still be regenerated-and-retried instead of failing outright
	// (spec.md ยง4.9).
	owners map[cacheKey]*ProcessedNode
}

// DefaultCacheCapacity is the cache's default entry capacity (spec.md ยง3.4).
const DefaultCacheCapacity = 50

// NewCache creates a Cache with the given capacity (<=0 selects
// DefaultCacheCapacity).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  orderedmap.NewOrderedMap[cacheKey, *cacheEntry](),
		owners:   make(map[cacheKey]*ProcessedNode),
	}
}

// get looks up an entry and, on hit, promotes it to most-recently-used.
func (c *Cache) get(key cacheKey) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	c.entries.Delete(key)
	c.entries.Set(key, v)
	return v, true
}

// put installs or replaces an entry, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) put(key cacheKey, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries.Get(key); exists {
		c.entries.Delete(key)
	}
	c.entries.Set(key, entry)
	for c.entries.Len() > c.capacity {
		front := c.entries.Front()
		if front == nil {
			break
		}
		c.entries.Delete(front.Key)
	}
}

// invalidate drops every cache entry (spec.md ยง4.9 "invalidate_data_source
// clears the cache atomically").
func (c *Cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.NewOrderedMap[cacheKey, *cacheEntry]()
	c.owners = make(map[cacheKey]*ProcessedNode)
}

// getPreprocessEntry fetches or builds a PreprocessEntry for a level,
// running load() on a miss and caching its result either way (errors are
// cached too, so a failing level is not re-run on every consumer until
// invalidated).
func (c *Cache) getPreprocessEntry(key cacheKey, load func() ([]*SourceNode, error)) ([]*SourceNode, error) {
	if entry, ok := c.get(key); ok && entry.kind == entryPreprocess {
		return entry.sourceNodes, entry.sourceErr
	}
	nodes, err := load()
	c.put(key, &cacheEntry{kind: entryPreprocess, sourceNodes: nodes, sourceErr: err})
	return nodes, err
}

// getGroupedChildren fetches a grouping node's materialized children.
func (c *Cache) getGroupedChildren(key cacheKey) ([]*FinalNode, bool) {
	entry, ok := c.get(key)
	if !ok || entry.kind != entryGroupedChildren {
		return nil, false
	}
	return entry.children, true
}

// putGroupedChildren installs a grouping node's materialized children,
// called by the provider when the grouping stage emits a new grouping node
// (spec.md ยง4.9 "Installed as follows"). owner is recorded so the entry can
// be regenerated on a later cache eviction; it is nil for a root-level
// grouping node and the enclosing grouping node for a nested one.
func (c *Cache) putGroupedChildren(key cacheKey, children []*FinalNode, owner *ProcessedNode) {
	c.put(key, &cacheEntry{kind: entryGroupedChildren, children: children})
	c.mu.Lock()
	c.owners[key] = owner
	c.mu.Unlock()
}

// groupingOwner returns the node recorded by putGroupedChildren for key, if
// any. The second return distinguishes "no entry was ever installed" from
// "the owner is the root level" (owner nil, ok true).
func (c *Cache) groupingOwner(key cacheKey) (*ProcessedNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[key]
	return owner, ok
}
