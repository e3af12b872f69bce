package config

import "testing"

func validConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Host: "localhost", Port: 3306, User: "root", Database: "hierarchy", TLS: "preferred",
		},
		Provider: ProviderConfig{
			QueryConcurrency: 10, QueryCacheSize: 50, HierarchyLevelSizeLimit: 0,
		},
		Localized: LocalizedStrings{Other: "Other", Unspecified: "Not Specified"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected valid config to pass, got: %v", err)
	}
}

func TestValidate_MissingSourceHost(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing source host")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Field != "source.host" {
		t.Errorf("expected a single source.host error, got %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_InvalidTLS(t *testing.T) {
	cfg := validConfig()
	cfg.Source.TLS = "maybe"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid tls value")
	}
}

func TestValidate_NonPositiveQueryConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.QueryConcurrency = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-positive query_concurrency")
	}
}

func TestValidate_NonPositiveQueryCacheSize(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.QueryCacheSize = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-positive query_cache_size")
	}
}

func TestValidate_NegativeHierarchyLevelSizeLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.HierarchyLevelSizeLimit = -5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for negative hierarchy_level_size_limit")
	}
}

func TestValidate_MissingLocalizedStrings(t *testing.T) {
	cfg := validConfig()
	cfg.Localized.Other = ""
	cfg.Localized.Unspecified = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing localized strings")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 2 {
		t.Errorf("expected 2 localized_strings errors, got %v", err)
	}
}

func TestValidate_InvalidLoggingLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid logging level")
	}
}

func TestValidate_InvalidLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid logging format")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "source.host", Message: "host is required"},
		{Field: "source.port", Message: "port must be between 1 and 65535"},
	}
	msg := errs.Error()
	if msg == "" {
		t.Error("expected non-empty error message")
	}
}

func TestValidationErrors_Empty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "" {
		t.Errorf("expected empty message for no errors, got %q", errs.Error())
	}
}

func TestValidate_HierarchyMissingClassName(t *testing.T) {
	cfg := validConfig()
	cfg.Hierarchy = []ClassRelation{{Query: "SELECT * FROM bis_element"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing class_name")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Field != "hierarchy[0].class_name" {
		t.Errorf("expected a single hierarchy[0].class_name error, got %v", err)
	}
}

func TestValidate_HierarchyNestedRelationMissingQuery(t *testing.T) {
	cfg := validConfig()
	cfg.Hierarchy = []ClassRelation{
		{
			ClassName: "Bis.Model",
			Query:     "SELECT * FROM bis_model",
			Relations: []ClassRelation{{ClassName: "Bis.Element"}},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing nested query")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok || len(verrs) != 1 || verrs[0].Field != "hierarchy[0].relations[0].query" {
		t.Errorf("expected a single nested query error, got %v", err)
	}
}
