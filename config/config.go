// Package config loads jsrt configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete jsrt configuration.
type Config struct {
	Runtime Runtime `toml:"runtime"`
	Modules Modules `toml:"modules"`
	Cache   Cache   `toml:"cache"`
	Log     Log     `toml:"log"`
}

// Runtime configures script execution.
type Runtime struct {
	// MaxFrameDepth limits script call depth. Zero keeps the VM default.
	MaxFrameDepth int `toml:"max_frame_depth"`
	// InterruptInterval is how many instructions run between interrupt
	// and cancellation checks. Zero keeps the VM default.
	InterruptInterval int `toml:"interrupt_interval"`
	// Timeout bounds each evaluation started from the command line, as a
	// duration string such as "5s". Zero means no limit.
	Timeout time.Duration `toml:"timeout"`
}

// Modules configures where imported modules are loaded from.
type Modules struct {
	SearchPaths []string `toml:"search_paths"`
	Extensions  []string `toml:"extensions"`
}

// Cache backends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Cache configures the bytecode cache.
type Cache struct {
	Backend string `toml:"backend"`
	// Path is the SQLite database file.
	Path string `toml:"path"`
	// DSN is the Postgres connection string.
	DSN    string `toml:"dsn"`
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
	// Format is "console" or "json". Empty picks console output on a
	// terminal and JSON otherwise.
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Modules: Modules{SearchPaths: []string{"."}, Extensions: []string{".js", ".mjs"}},
		Cache:   Cache{Backend: BackendNone},
		Log:     Log{Level: "warn"},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text on top of the defaults and validates it.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and backend requirements.
func (c *Config) Validate() error {
	if c.Runtime.MaxFrameDepth < 0 {
		return fmt.Errorf("runtime.max_frame_depth must not be negative")
	}
	if c.Runtime.InterruptInterval < 0 {
		return fmt.Errorf("runtime.interrupt_interval must not be negative")
	}
	if c.Runtime.Timeout < 0 {
		return fmt.Errorf("runtime.timeout must not be negative")
	}
	switch c.Cache.Backend {
	case "", BackendNone, BackendMemory:
	case BackendSQLite:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend")
		}
	case BackendS3:
		if c.Cache.Bucket == "" {
			return fmt.Errorf("cache.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
