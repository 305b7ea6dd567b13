package config

import "vibetex/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format     string          `yaml:"format" toml:"format"` // console, json
	File       string          `yaml:"file" toml:"file"`
	Categories map[string]bool `yaml:"categories" toml:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Unlisted categories are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	return !exists || enabled
}

// Options converts the section into logger options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
