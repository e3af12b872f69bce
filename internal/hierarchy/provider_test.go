package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-hierarchy/provider/internal/metadata"
)

type defineLevelFunc func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error)

type funcDefinition struct {
	fn defineLevelFunc
}

func (f *funcDefinition) DefineLevel(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
	return f.fn(ctx, parent, filter)
}

func noExecutor() QueryExecutor {
	return queryExecutorFunc(func(ctx context.Context, q Query, limit int) ([]Row, error) {
		return nil, assert.AnError
	})
}

func genericSourceNode(id string) *SourceNode {
	return &SourceNode{Label: PlainLabel(id), Key: NewGenericNodeKey(id, "")}
}

func TestProvider_GetNodes_RootLevel_ReturnsFinalizedNodes(t *testing.T) {
	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent != nil {
			return nil, nil
		}
		return LevelDefinition{
			NewGenericDefinition(genericSourceNode("alpha")),
			NewGenericDefinition(genericSourceNode("beta")),
		}, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "alpha", nodes[0].Label)
	assert.Equal(t, "beta", nodes[1].Label)
	assert.False(t, nodes[0].Children, "a generic leaf with no declared children should probe to false")
}

func TestProvider_GetNodes_DeterminesChildrenByProbing(t *testing.T) {
	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent == nil {
			return LevelDefinition{NewGenericDefinition(genericSourceNode("parent"))}, nil
		}
		if parent.Key.Generic.ID == "parent" {
			return LevelDefinition{NewGenericDefinition(genericSourceNode("child"))}, nil
		}
		return nil, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].Children)

	children, err := p.GetNodes(context.Background(), GetNodesOptions{Parent: AsParent(nodes[0])})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].Label)
	assert.False(t, children[0].Children)
}

func TestProvider_GetNodes_HideIfNoChildrenReplacesWithGrandchildren(t *testing.T) {
	wrapper := genericSourceNode("wrapper")
	wrapper.ProcessingParams = &ProcessingParams{HideIfNoChildren: true}

	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent == nil {
			return LevelDefinition{NewGenericDefinition(wrapper)}, nil
		}
		if parent.Key.Generic.ID == "wrapper" {
			return LevelDefinition{NewGenericDefinition(genericSourceNode("grandchild"))}, nil
		}
		return nil, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "grandchild", nodes[0].Label, "hide_if_no_children wrapper should be replaced by its child")
}

func TestProvider_GetNodes_HideIfNoChildrenDropsWhenEmpty(t *testing.T) {
	wrapper := genericSourceNode("wrapper")
	wrapper.ProcessingParams = &ProcessingParams{HideIfNoChildren: true}

	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent == nil {
			return LevelDefinition{NewGenericDefinition(wrapper)}, nil
		}
		return nil, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestProvider_GetNodes_HideInHierarchyReplacesWithChildren(t *testing.T) {
	wrapper := genericSourceNode("wrapper")
	wrapper.ProcessingParams = &ProcessingParams{HideInHierarchy: true}

	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent == nil {
			return LevelDefinition{NewGenericDefinition(wrapper)}, nil
		}
		if parent.Key.Generic.ID == "wrapper" {
			return LevelDefinition{NewGenericDefinition(genericSourceNode("visible-child"))}, nil
		}
		return nil, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "visible-child", nodes[0].Label)
}

func TestProvider_SetFormatter_AffectsSubsequentLabels(t *testing.T) {
	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent != nil {
			return nil, nil
		}
		return LevelDefinition{NewGenericDefinition(genericSourceNode("alpha"))}, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	p.SetFormatter(FormatterFunc(func(ctx context.Context, v TypedPrimitiveValue) (string, error) {
		return "shouted:" + fmtAny(v.Value), nil
	}))

	nodes, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "shouted:alpha", nodes[0].Label)
}

func fmtAny(v interface{}) string {
	s, _ := v.(string)
	return s
}

func TestProvider_NotifyDataSourceChanged_ClearsCache(t *testing.T) {
	calls := 0
	def := &funcDefinition{fn: func(ctx context.Context, parent *ProcessedNode, filter *InstanceFilter) (LevelDefinition, error) {
		if parent != nil {
			return nil, nil
		}
		calls++
		return LevelDefinition{NewGenericDefinition(genericSourceNode("alpha"))}, nil
	}}
	p := NewProvider(ProviderOptions{
		MetadataProvider:    metadata.NewInMemoryProvider(),
		QueryExecutor:       noExecutor(),
		HierarchyDefinition: def,
	})

	_, err := p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	_, err = p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call should hit the cache")

	p.NotifyDataSourceChanged()

	_, err = p.GetNodes(context.Background(), GetNodesOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "cache should be empty after invalidation")
}
