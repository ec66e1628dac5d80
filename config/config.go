package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/devfs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI style verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultFsName = "devfs"
	DefaultName   = "devfs"

	// DefaultLocalRoot is the host directory the local device is rooted at
	DefaultLocalRoot = "/"

	// DefaultUserAgent is sent with every HTTP request
	DefaultUserAgent = "devfs/1.0"

	// DefaultRequestTimeout of 0 leaves deadlines to the transport
	DefaultRequestTimeout = 0.0

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass page cache for mounted files
	DefaultDirectIO = true
)

// Config contains runtime configuration values for devfs.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel // Internal log level (Default info)
	LocalRoot      string        // Root directory of the local device (Default "/")
	UserAgent      string        // User-Agent header for HTTP requests (Default "devfs/1.0")
	RequestTimeout float64       // Whole-request timeout in seconds; 0 disables (Default 0)

	// NOTE: FUSE bridge settings

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for mounted files (Default true)
}

// Timeout returns RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout * float64(time.Second))
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // 1 (error) to 5 (trace)
	LocalRoot      *string  `yaml:"local_root,omitempty" json:"local_root,omitempty"`
	UserAgent      *string  `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	RequestTimeout *float64 `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO       *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		LocalRoot:      DefaultLocalRoot,
		UserAgent:      DefaultUserAgent,
		RequestTimeout: DefaultRequestTimeout,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
		DirectIO:       DefaultDirectIO,
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerbosityToLogLevel converts CLI verbosity (1 error .. 5 trace) to a
// [util.LogLevel], clamping out of range values
func VerbosityToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
	if override.LocalRoot != nil {
		c.LocalRoot = *override.LocalRoot
	}
	if override.UserAgent != nil {
		c.UserAgent = *override.UserAgent
	}
	if override.RequestTimeout != nil {
		c.RequestTimeout = *override.RequestTimeout
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
