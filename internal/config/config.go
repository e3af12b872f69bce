// Package config provides configuration structures and loading for the
// hierarchy provider.
package config

// Config represents the complete application configuration for a hierarchy
// provider deployment: how to reach the relational data source, and the
// provider's own tuning knobs (spec.md ยง6.2).
type Config struct {
	Source    DatabaseConfig   `yaml:"source" mapstructure:"source"`
	Provider  ProviderConfig   `yaml:"provider" mapstructure:"provider"`
	Logging   LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Localized LocalizedStrings `yaml:"localized_strings" mapstructure:"localized_strings"`
	Hierarchy []ClassRelation  `yaml:"hierarchy" mapstructure:"hierarchy"`
}

// ClassRelation declares one level of a hierarchy tree rooted at a
// relational class and the query that produces its rows, the way the
// teacher's Relation declares one level of a table dependency tree. A
// nested relation's Query carries a single "?" placeholder; at query time
// it is expanded into one "?" per distinct parent instance id, each bound
// to one of those ids.
type ClassRelation struct {
	ClassName string          `yaml:"class_name" mapstructure:"class_name"`
	Query     string          `yaml:"query" mapstructure:"query"`
	Relations []ClassRelation `yaml:"relations" mapstructure:"relations"`
}

// DatabaseConfig represents a MySQL database connection configuration for
// the relational data source the hierarchy is built over.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ProviderConfig tunes the hierarchy provider itself (spec.md ยง6.2).
type ProviderConfig struct {
	QueryConcurrency        int `yaml:"query_concurrency" mapstructure:"query_concurrency"`
	QueryCacheSize          int `yaml:"query_cache_size" mapstructure:"query_cache_size"`
	HierarchyLevelSizeLimit int `yaml:"hierarchy_level_size_limit" mapstructure:"hierarchy_level_size_limit"` // 0 = unbounded
}

// LocalizedStrings supplies the two label fallback strings spec.md ยง6.2
// recognizes under the `localized_strings` provider option.
type LocalizedStrings struct {
	Other       string `yaml:"other" mapstructure:"other"`
	Unspecified string `yaml:"unspecified" mapstructure:"unspecified"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Provider: ProviderConfig{
			QueryConcurrency:        10,
			QueryCacheSize:          50,
			HierarchyLevelSizeLimit: 0,
		},
		Localized: LocalizedStrings{
			Other:       "Other",
			Unspecified: "Not Specified",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
