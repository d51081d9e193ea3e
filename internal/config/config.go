// Package config handles forge configuration loading and management.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Faultbox/midgard-forge/pkg/encoding"
	"github.com/Faultbox/midgard-forge/pkg/formats"
	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// Config holds all forge settings.
type Config struct {
	Build    BuildConfig    `yaml:"build"`
	Terrain  TerrainConfig  `yaml:"terrain"`
	Textures TexturesConfig `yaml:"textures"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BuildConfig holds pipeline settings.
type BuildConfig struct {
	OutputDir     string        `yaml:"output_dir"`
	Workers       int           `yaml:"workers"`
	CacheDir      string        `yaml:"cache_dir"` // Empty disables the tile cache
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// TerrainConfig holds encoder settings applied to every tile.
type TerrainConfig struct {
	GridFlags    uint32 `yaml:"grid_flags"`
	HeaderFlags  uint32 `yaml:"header_flags"`
	MissingAlpha string `yaml:"missing_alpha"` // "opaque" or "transparent"
	Charset      string `yaml:"charset"`       // Client code page for file names
}

// TexturesConfig selects the texture converter.
type TexturesConfig struct {
	Converter     string   `yaml:"converter"` // External tool, empty for the built-in encoder
	ConverterArgs []string `yaml:"converter_args"`
}

// RegistryConfig holds ID allocation settings.
type RegistryConfig struct {
	Path  string `yaml:"path"` // SQLite database, empty for in-memory
	MapID uint32 `yaml:"map_id"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			OutputDir:     "out",
			Workers:       runtime.NumCPU(),
			WatchDebounce: 300 * time.Millisecond,
		},
		Terrain: TerrainConfig{
			GridFlags:    formats.MPHDBigAlpha,
			MissingAlpha: terrain.AlphaOpaque.String(),
			Charset:      encoding.Windows1252.Name(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// AlphaFallback returns the parsed terrain.missing_alpha setting.
func (c *Config) AlphaFallback() (terrain.AlphaFallback, error) {
	return terrain.ParseAlphaFallback(c.Terrain.MissingAlpha)
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Build.OutputDir == "" {
		return fmt.Errorf("build.output_dir is empty")
	}
	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be positive, got %d", c.Build.Workers)
	}
	if _, err := c.AlphaFallback(); err != nil {
		return fmt.Errorf("terrain.missing_alpha: %w", err)
	}
	if _, err := encoding.Lookup(c.Terrain.Charset); err != nil {
		return fmt.Errorf("terrain.charset: %w", err)
	}
	return nil
}
