// Package config loads the dashboard's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lox/worldstrat/internal/geo"
	"github.com/lox/worldstrat/internal/imagery"
	"github.com/lox/worldstrat/internal/metadata"
)

// Config holds data locations and UI defaults.
type Config struct {
	MetadataPath string `yaml:"metadata_path"`
	SplitPath    string `yaml:"split_path"`
	HRBase       string `yaml:"hr_base"`
	LRBase       string `yaml:"lr_base"`

	// DefaultCloudMax is the initial cloud cover threshold. Nil means the
	// observed maximum of the loaded table.
	DefaultCloudMax *float64 `yaml:"default_cloud_max"`
	MapZoom         float64  `yaml:"map_zoom"`

	CacheEntries int    `yaml:"cache_entries"`
	ThumbDir     string `yaml:"thumb_dir"`
	ThumbSize    int    `yaml:"thumb_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		MetadataPath: "metadata.csv",
		HRBase:       "hr_dataset",
		LRBase:       "lr_dataset",
		MapZoom:      geo.DefaultZoom,
		CacheEntries: metadata.DefaultCacheEntries,
		ThumbDir:     "thumbs",
		ThumbSize:    imagery.DefaultThumbSize,
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and restores defaults for zero values.
func (c *Config) Validate() error {
	if c.DefaultCloudMax != nil && (*c.DefaultCloudMax < 0 || *c.DefaultCloudMax > 100) {
		return fmt.Errorf("default_cloud_max must be within [0, 100], got %g", *c.DefaultCloudMax)
	}
	if c.MapZoom < 0 {
		return fmt.Errorf("map_zoom must not be negative, got %g", c.MapZoom)
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must not be negative, got %d", c.CacheEntries)
	}
	if c.ThumbSize < 0 {
		return fmt.Errorf("thumb_size must not be negative, got %d", c.ThumbSize)
	}

	d := Default()
	if c.MapZoom == 0 {
		c.MapZoom = d.MapZoom
	}
	if c.CacheEntries == 0 {
		c.CacheEntries = d.CacheEntries
	}
	if c.ThumbSize == 0 {
		c.ThumbSize = d.ThumbSize
	}
	return nil
}

// Save writes c to path as YAML.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
