package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-hierarchy/provider/internal/config"
	"github.com/go-hierarchy/provider/internal/dbexec"
	"github.com/go-hierarchy/provider/internal/hierarchy"
	"github.com/go-hierarchy/provider/internal/logger"
	"github.com/go-hierarchy/provider/internal/metadata"
	"github.com/go-hierarchy/provider/internal/treeprint"
)

var (
	treeMaxDepth  int
	treeShowKeys  bool
	treeNoColor   bool
	treeLevelSize int
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Render the configured hierarchy as an ASCII tree",
	Long: `Tree connects to the configured MySQL source, resolves the hierarchy
declared under the "hierarchy" config key, and prints it as a colorized,
box-drawing ASCII tree.

Example:
  hiertree tree --config hiertree.yaml --depth 3`,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().IntVar(&treeMaxDepth, "depth", 0, "Maximum depth to descend (0 = unbounded)")
	treeCmd.Flags().BoolVar(&treeShowKeys, "show-keys", false, "Print each node's key string")
	treeCmd.Flags().BoolVar(&treeNoColor, "no-color", false, "Disable colorized output")
	treeCmd.Flags().IntVar(&treeLevelSize, "level-limit", 0, "hierarchy_level_size_limit override (0 = use provider.hierarchy_level_size_limit from the config)")

	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.QueryConcurrency, overrides.QueryCacheSize)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := dbexec.SetupSignalHandler()

	mgr := dbexec.NewManager(&cfg.Source)
	if err := mgr.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer mgr.Close()

	md := metadataFromHierarchy(cfg.Hierarchy)
	executor := dbexec.NewExecutor(mgr.DB, log)
	definition := dbexec.NewDeclarativeDefinition(toRelations(cfg.Hierarchy), md)

	limit := treeLevelSize
	if limit == 0 {
		limit = cfg.Provider.HierarchyLevelSizeLimit
	}

	provider := hierarchy.NewProvider(hierarchy.ProviderOptions{
		MetadataProvider:    md,
		QueryExecutor:       executor,
		HierarchyDefinition: definition,
		LocalizedStrings: hierarchy.LocalizedStrings{
			Other:       cfg.Localized.Other,
			Unspecified: cfg.Localized.Unspecified,
		},
		QueryConcurrency: cfg.Provider.QueryConcurrency,
		QueryCacheSize:   cfg.Provider.QueryCacheSize,
		Logger:           log,
	})

	return treeprint.Render(ctx, os.Stdout, provider, nil, treeprint.Options{
		MaxDepth:       treeMaxDepth,
		ShowKeys:       treeShowKeys,
		NoColor:        treeNoColor,
		LevelSizeLimit: limit,
	})
}

// metadataFromHierarchy builds an in-memory metadata.Provider covering
// every class named in the declarative hierarchy tree, using the part
// after the schema separator as its display label.
func metadataFromHierarchy(rels []config.ClassRelation) metadata.Provider {
	md := metadata.NewInMemoryProvider()
	var walk func([]config.ClassRelation)
	walk = func(rs []config.ClassRelation) {
		for _, r := range rs {
			md.RegisterClass(r.ClassName, displayName(r.ClassName), metadata.ClassKindEntity)
			walk(r.Relations)
		}
	}
	walk(rels)
	return md
}

// toRelations converts the config-layer hierarchy tree into the dbexec
// ClassRelation tree DeclarativeDefinition consumes.
func toRelations(rels []config.ClassRelation) []dbexec.ClassRelation {
	out := make([]dbexec.ClassRelation, len(rels))
	for i, r := range rels {
		out[i] = dbexec.ClassRelation{
			ClassName: r.ClassName,
			Query:     r.Query,
			Relations: toRelations(r.Relations),
		}
	}
	return out
}

func displayName(fullClassName string) string {
	for i := len(fullClassName) - 1; i >= 0; i-- {
		if fullClassName[i] == '.' || fullClassName[i] == ':' {
			return fullClassName[i+1:]
		}
	}
	return fullClassName
}
