package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Port != 3306 {
		t.Errorf("expected source port 3306, got %d", cfg.Source.Port)
	}
	if cfg.Source.TLS != "preferred" {
		t.Errorf("expected source TLS 'preferred', got %s", cfg.Source.TLS)
	}
	if cfg.Source.MaxConnections != 10 {
		t.Errorf("expected source max_connections 10, got %d", cfg.Source.MaxConnections)
	}

	if cfg.Provider.QueryConcurrency != 10 {
		t.Errorf("expected query_concurrency 10, got %d", cfg.Provider.QueryConcurrency)
	}
	if cfg.Provider.QueryCacheSize != 50 {
		t.Errorf("expected query_cache_size 50, got %d", cfg.Provider.QueryCacheSize)
	}
	if cfg.Provider.HierarchyLevelSizeLimit != 0 {
		t.Errorf("expected hierarchy_level_size_limit 0, got %d", cfg.Provider.HierarchyLevelSizeLimit)
	}

	if cfg.Localized.Other != "Other" {
		t.Errorf("expected localized other 'Other', got %s", cfg.Localized.Other)
	}
	if cfg.Localized.Unspecified != "Not Specified" {
		t.Errorf("expected localized unspecified 'Not Specified', got %s", cfg.Localized.Unspecified)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected logging format 'json', got %s", cfg.Logging.Format)
	}
}
