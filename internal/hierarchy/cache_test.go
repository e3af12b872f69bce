package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootKey() []NodeKey {
	return []NodeKey{NewGenericNodeKey("root", "")}
}

func TestCache_GetPreprocessEntry_CachesOnMiss(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)

	calls := 0
	load := func() ([]*SourceNode, error) {
		calls++
		return []*SourceNode{{}}, nil
	}

	nodes1, err1 := c.getPreprocessEntry(key, load)
	require.NoError(t, err1)
	assert.Len(t, nodes1, 1)

	nodes2, err2 := c.getPreprocessEntry(key, load)
	require.NoError(t, err2)
	assert.Same(t, nodes1[0], nodes2[0])
	assert.Equal(t, 1, calls, "second lookup should hit the cache, not re-run load")
}

func TestCache_GetPreprocessEntry_CachesErrors(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)
	wantErr := errors.New("query failed")

	calls := 0
	load := func() ([]*SourceNode, error) {
		calls++
		return nil, wantErr
	}

	_, err1 := c.getPreprocessEntry(key, load)
	assert.Equal(t, wantErr, err1)
	_, err2 := c.getPreprocessEntry(key, load)
	assert.Equal(t, wantErr, err2)
	assert.Equal(t, 1, calls, "a failing level should not be re-run until invalidated")
}

func TestCache_GroupedChildren_RoundTrip(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)

	_, ok := c.getGroupedChildren(key)
	assert.False(t, ok)

	children := []*FinalNode{{}}
	c.putGroupedChildren(key, children, nil)

	got, ok := c.getGroupedChildren(key)
	require.True(t, ok)
	assert.Equal(t, children, got)
}

func TestCache_GroupedChildren_KindMismatchMisses(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)
	_, _ = c.getPreprocessEntry(key, func() ([]*SourceNode, error) { return nil, nil })

	_, ok := c.getGroupedChildren(key)
	assert.False(t, ok, "a preprocess entry at this key should not satisfy a grouped-children lookup")
}

func TestCache_Put_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	keyA := makeCacheKey([]NodeKey{NewGenericNodeKey("a", "")}, nil, 0)
	keyB := makeCacheKey([]NodeKey{NewGenericNodeKey("b", "")}, nil, 0)
	keyC := makeCacheKey([]NodeKey{NewGenericNodeKey("c", "")}, nil, 0)

	c.putGroupedChildren(keyA, []*FinalNode{{}}, nil)
	c.putGroupedChildren(keyB, []*FinalNode{{}}, nil)

	// Touch A so B becomes least-recently-used.
	_, _ = c.getGroupedChildren(keyA)

	c.putGroupedChildren(keyC, []*FinalNode{{}}, nil)

	_, okA := c.getGroupedChildren(keyA)
	_, okB := c.getGroupedChildren(keyB)
	_, okC := c.getGroupedChildren(keyC)
	assert.True(t, okA)
	assert.False(t, okB, "B should have been evicted as least-recently-used")
	assert.True(t, okC)
}

func TestCache_Invalidate_ClearsAllEntries(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)
	c.putGroupedChildren(key, []*FinalNode{{}}, nil)

	c.invalidate()

	_, ok := c.getGroupedChildren(key)
	assert.False(t, ok)
}

func TestCache_GroupingOwner_RoundTripDistinguishesRootFromUnrecorded(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)

	_, ok := c.groupingOwner(key)
	assert.False(t, ok, "a key with no installed entry has no recorded owner")

	c.putGroupedChildren(key, []*FinalNode{{}}, nil)
	owner, ok := c.groupingOwner(key)
	assert.True(t, ok)
	assert.Nil(t, owner, "a root-level grouping node's owner is nil, not absent")

	parent := &ProcessedNode{Label: "parent"}
	otherKey := makeCacheKey([]NodeKey{NewGenericNodeKey("nested", "")}, nil, 0)
	c.putGroupedChildren(otherKey, []*FinalNode{{}}, parent)
	gotOwner, ok := c.groupingOwner(otherKey)
	require.True(t, ok)
	assert.Same(t, parent, gotOwner)
}

func TestCache_Invalidate_ClearsOwners(t *testing.T) {
	c := NewCache(10)
	key := makeCacheKey(rootKey(), nil, 0)
	c.putGroupedChildren(key, []*FinalNode{{}}, nil)

	c.invalidate()

	_, ok := c.groupingOwner(key)
	assert.False(t, ok)
}

func TestMakeCacheKey_DistinguishesFilterAndLimit(t *testing.T) {
	base := makeCacheKey(rootKey(), nil, 0)
	withFilter := makeCacheKey(rootKey(), &InstanceFilter{Expression: "x = 1"}, 0)
	withLimit := makeCacheKey(rootKey(), nil, 100)

	assert.NotEqual(t, base, withFilter)
	assert.NotEqual(t, base, withLimit)
	assert.NotEqual(t, withFilter, withLimit)
}
