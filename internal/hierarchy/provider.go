package hierarchy

import (
	"context"

	"github.com/go-hierarchy/provider/internal/logger"
	"github.com/go-hierarchy/provider/internal/metadata"
)

// Unbounded marks a get_nodes request with no hierarchy_level_size_limit
// (spec.md ยง6.2 "int|'unbounded'").
const Unbounded = 0

// ProviderOptions configures a new Provider (spec.md ยง6.2).
type ProviderOptions struct {
	MetadataProvider    metadata.Provider
	QueryExecutor       QueryExecutor
	HierarchyDefinition HierarchyDefinition

	Formatter           Formatter        // optional; defaults to DefaultFormatter()
	LocalizedStrings    LocalizedStrings // optional; defaults to DefaultLocalizedStrings()
	QueryConcurrency    int              // optional; defaults to DefaultQueryConcurrency
	QueryCacheSize      int              // optional; defaults to DefaultCacheCapacity
	FilterPaths         FilterPaths      // optional; nil means unfiltered
	Logger              *logger.Logger   // optional; defaults to logger.NewDefault()
}

// GetNodesOptions parameterizes one get_nodes call (spec.md ยง6.2).
type GetNodesOptions struct {
	Parent                  *ProcessedNode
	InstanceFilter          *InstanceFilter
	HierarchyLevelSizeLimit int // 0 (Unbounded) means no limit
}

// Provider is the public entry point of spec.md ยง6.2: it orchestrates the
// level-definition resolver, query scheduler, row reader, processing
// pipeline, grouping subsystem, filtering wrapper, and cache.
type Provider struct {
	pipeline *pipeline
}

// NewProvider builds a Provider from the given options, wrapping the
// supplied HierarchyDefinition in the filtering wrapper when FilterPaths is
// non-nil (spec.md ยง4.6).
func NewProvider(opts ProviderOptions) *Provider {
	formatter := opts.Formatter
	if formatter == nil {
		formatter = DefaultFormatter()
	}
	localized := opts.LocalizedStrings
	if localized == (LocalizedStrings{}) {
		localized = DefaultLocalizedStrings()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault()
	}

	definition := NewFilteringDefinition(opts.HierarchyDefinition, opts.MetadataProvider, opts.FilterPaths)

	scheduler := NewScheduler(opts.QueryExecutor, opts.QueryConcurrency, log)
	cache := NewCache(opts.QueryCacheSize)

	box := &formatterBox{f: formatter}

	return &Provider{
		pipeline: &pipeline{
			definition: definition,
			scheduler:  scheduler,
			cache:      cache,
			metadata:   opts.MetadataProvider,
			formatter:  box,
			localized:  localized,
			log:        log,
		},
	}
}

// GetNodes resolves the children of opts.Parent (nil for the hierarchy
// root), producing fully processed, sorted, grouped, finalized nodes
// (spec.md ยง6.2).
func (p *Provider) GetNodes(ctx context.Context, opts GetNodesOptions) ([]*FinalNode, error) {
	limit := opts.HierarchyLevelSizeLimit
	if limit < 0 {
		limit = Unbounded
	}
	return p.pipeline.level(ctx, opts.Parent, opts.InstanceFilter, limit)
}

// SetFormatter swaps the active primitive value formatter. Cached raw
// source-node streams remain valid; only label formatting on subsequent
// reads is affected (spec.md ยง6.2).
func (p *Provider) SetFormatter(formatter Formatter) {
	if formatter == nil {
		formatter = DefaultFormatter()
	}
	p.pipeline.formatter.set(formatter)
}

// NotifyDataSourceChanged clears the cache atomically (spec.md ยง6.2,
// ยง3.4 "invalidate_data_source").
func (p *Provider) NotifyDataSourceChanged() {
	p.pipeline.cache.invalidate()
}

// AsParent converts a node previously returned by GetNodes back into the
// Parent shape a subsequent GetNodes call expects, letting a caller
// descend into children it was just handed (spec.md ยง6.2 get_nodes takes
// `parent?`). Grouping-node parents are resolved straight from the cache
// entry the grouping stage installed when it created them.
func AsParent(f *FinalNode) *ProcessedNode {
	var filtering *FilteringInfo
	if f.IsFilterTarget || f.FilterTargetOptions != nil || f.HasFilterTargetAncestor {
		filtering = &FilteringInfo{
			IsFilterTarget:          f.IsFilterTarget,
			FilterTargetOptions:     f.FilterTargetOptions,
			HasFilterTargetAncestor: f.HasFilterTargetAncestor,
		}
	}
	hasChildren := f.Children
	return &ProcessedNode{
		Label:           f.Label,
		Key:             f.Key,
		ParentKeys:      f.ParentKeys,
		ExtendedData:    f.ExtendedData,
		Filtering:       filtering,
		AutoExpand:      f.AutoExpand,
		Children:        &hasChildren,
		GroupedChildren: f.GroupedChildren,
	}
}
