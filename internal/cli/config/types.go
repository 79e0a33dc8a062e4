// Package config provides configuration management for the leaplineage CLI.
//
// The warehouse and object store settings are defined in internal/config and
// re-exported here via type aliases, so commands only import this package.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/leaplineage/internal/config"
	"github.com/leapstack-labs/leaplineage/internal/layout"
)

// WarehouseConfig is an alias for the shared warehouse configuration.
type WarehouseConfig = sharedcfg.WarehouseConfig

// ObjectStoreConfig is an alias for the shared object store configuration.
type ObjectStoreConfig = sharedcfg.ObjectStoreConfig

// ServerConfig holds configuration for the serve command.
type ServerConfig struct {
	Port           int      `koanf:"port"`
	Watch          bool     `koanf:"watch"`
	Schedule       string   `koanf:"schedule"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	// RebuildInterval throttles on-demand rebuilds when neither watching nor scheduling.
	RebuildInterval time.Duration `koanf:"rebuild_interval"`
}

// Config holds all CLI configuration options.
type Config struct {
	ResultsDir   string `koanf:"results_dir"`
	Source       string `koanf:"source"`
	Pattern      string `koanf:"pattern"`
	Concurrency  int    `koanf:"concurrency"`
	StatePath    string `koanf:"state_path"`
	NoHistory    bool   `koanf:"no_history"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Layout      layout.Options    `koanf:"layout"`
	Server      ServerConfig      `koanf:"server"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
	Warehouse   WarehouseConfig   `koanf:"warehouse"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// SourceURI returns the configured source, falling back to the results directory.
func (c *Config) SourceURI() string {
	if c.Source != "" {
		return c.Source
	}
	return c.ResultsDir
}

// IsLocalSource reports whether the source is a directory on disk that can be watched.
func (c *Config) IsLocalSource() bool {
	uri := c.SourceURI()
	return uri != "" && !hasScheme(uri)
}

// Default configuration values.
const (
	DefaultResultsDir = sharedcfg.DefaultResultsDir
	DefaultStateFile  = sharedcfg.DefaultStateFile
	DefaultPort       = sharedcfg.DefaultPort
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
