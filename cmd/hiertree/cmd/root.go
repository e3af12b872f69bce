package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile          string
	logLevel         string
	logFormat        string
	queryConcurrency int
	queryCacheSize   int
)

var rootCmd = &cobra.Command{
	Use:   "hiertree",
	Short: "Hierarchical tree provider over a MySQL data source",
	Long: `hiertree resolves and renders hierarchies defined over a relational
MySQL data source.

Features:
  - Declarative class-relation trees loaded from configuration
  - Bounded-concurrency query scheduling with per-level caching
  - by_class, by_base_classes, by_properties, and by_label grouping
  - Path-based filtering with ancestor auto-expand`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "hiertree.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
	rootCmd.PersistentFlags().IntVar(&queryConcurrency, "query-concurrency", 0,
		"Override query scheduler concurrency")
	rootCmd.PersistentFlags().IntVar(&queryCacheSize, "query-cache-size", 0,
		"Override provider cache capacity")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel         string
	LogFormat        string
	QueryConcurrency int
	QueryCacheSize   int
}

// GetCLIOverrides returns the CLI flag override values.
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:         logLevel,
		LogFormat:        logFormat,
		QueryConcurrency: queryConcurrency,
		QueryCacheSize:   queryCacheSize,
	}
}
