package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateDatabase("source", &c.Source); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateProvider(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLocalized(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateHierarchy(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateHierarchy() ValidationErrors {
	var errors ValidationErrors
	var walk func(prefix string, rels []ClassRelation)
	walk = func(prefix string, rels []ClassRelation) {
		for i, r := range rels {
			field := fmt.Sprintf("%s[%d]", prefix, i)
			if r.ClassName == "" {
				errors = append(errors, ValidationError{Field: field + ".class_name", Message: "class_name is required"})
			}
			if r.Query == "" {
				errors = append(errors, ValidationError{Field: field + ".query", Message: "query is required"})
			}
			walk(field+".relations", r.Relations)
		}
	}
	walk("hierarchy", c.Hierarchy)
	return errors
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateProvider() ValidationErrors {
	var errors ValidationErrors

	if c.Provider.QueryConcurrency <= 0 {
		errors = append(errors, ValidationError{
			Field:   "provider.query_concurrency",
			Message: "query_concurrency must be positive",
		})
	}

	if c.Provider.QueryCacheSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "provider.query_cache_size",
			Message: "query_cache_size must be positive",
		})
	}

	if c.Provider.HierarchyLevelSizeLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "provider.hierarchy_level_size_limit",
			Message: "hierarchy_level_size_limit cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLocalized() ValidationErrors {
	var errors ValidationErrors

	if c.Localized.Other == "" {
		errors = append(errors, ValidationError{
			Field:   "localized_strings.other",
			Message: "other is required",
		})
	}

	if c.Localized.Unspecified == "" {
		errors = append(errors, ValidationError{
			Field:   "localized_strings.unspecified",
			Message: "unspecified is required",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
