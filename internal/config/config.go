package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the location of the config file relative to a workspace.
var ConfigFile = filepath.Join(".filescout", "config.yaml")

// ErrNoConfig is returned by LoadConfigStrict when the config file does not exist.
var ErrNoConfig = errors.New("config file not found")

// HistoryConfig represents scan history configuration
type HistoryConfig struct {
	// Enabled records every scan in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database (empty = $FILESCOUT_HOME/history/scans.db)
	DBPath string `yaml:"db_path"`
}

// Config represents filescout configuration options
type Config struct {
	// Pattern is the glob (or comma-separated globs) of the files to scan
	Pattern string `yaml:"pattern"`

	// Encoding is the charset used to read the files
	Encoding string `yaml:"encoding"`

	// FollowSymlinks enables traversal of symbolic links
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// Processor selects the built-in transform (lines, markdown, yaml)
	Processor string `yaml:"processor"`

	// HandlerName prefixes every line of the scan log
	HandlerName string `yaml:"handler_name"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir enables run log files in the given directory (empty = disabled)
	LogDir string `yaml:"log_dir"`

	// MaxErrorLines limits the stored error lines per scan (0 = default, <0 = unlimited)
	MaxErrorLines int `yaml:"max_error_lines"`

	// ExcludeDirs lists directory names that are never traversed
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// WatchDebounce is the quiet period before a watch-mode rescan
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// History contains scan history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Pattern:        "**/*",
		Encoding:       "UTF-8",
		FollowSymlinks: true,
		Processor:      "lines",
		HandlerName:    "filescout",
		LogLevel:       "info",
		LogDir:         "",
		MaxErrorLines:  20,
		ExcludeDirs:    []string{".git", ".filescout"},
		WatchDebounce:  500 * time.Millisecond,
		History: HistoryConfig{
			Enabled: false,
			DBPath:  "",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigStrict(path)
	if errors.Is(err, ErrNoConfig) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadConfigStrict is LoadConfig but fails with ErrNoConfig when the file is missing.
func LoadConfigStrict(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoConfig, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are parsed by hand so "500ms" style strings work
	type yamlConfig struct {
		Pattern        string        `yaml:"pattern"`
		Encoding       string        `yaml:"encoding"`
		FollowSymlinks bool          `yaml:"follow_symlinks"`
		Processor      string        `yaml:"processor"`
		HandlerName    string        `yaml:"handler_name"`
		LogLevel       string        `yaml:"log_level"`
		LogDir         string        `yaml:"log_dir"`
		MaxErrorLines  int           `yaml:"max_error_lines"`
		ExcludeDirs    []string      `yaml:"exclude_dirs"`
		WatchDebounce  string        `yaml:"watch_debounce"`
		History        HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Booleans, numbers and lists can legitimately be zero, so presence is
	// detected on the raw map instead of the decoded value.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	has := func(m map[string]interface{}, key string) bool {
		_, ok := m[key]
		return ok
	}

	if yamlCfg.Pattern != "" {
		cfg.Pattern = yamlCfg.Pattern
	}
	if yamlCfg.Encoding != "" {
		cfg.Encoding = yamlCfg.Encoding
	}
	if has(rawMap, "follow_symlinks") {
		cfg.FollowSymlinks = yamlCfg.FollowSymlinks
	}
	if yamlCfg.Processor != "" {
		cfg.Processor = yamlCfg.Processor
	}
	if yamlCfg.HandlerName != "" {
		cfg.HandlerName = yamlCfg.HandlerName
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if has(rawMap, "max_error_lines") {
		cfg.MaxErrorLines = yamlCfg.MaxErrorLines
	}
	if has(rawMap, "exclude_dirs") {
		cfg.ExcludeDirs = yamlCfg.ExcludeDirs
	}
	if yamlCfg.WatchDebounce != "" {
		debounce, err := time.ParseDuration(yamlCfg.WatchDebounce)
		if err != nil {
			return nil, fmt.Errorf("invalid watch_debounce format %q: %w", yamlCfg.WatchDebounce, err)
		}
		cfg.WatchDebounce = debounce
	}

	if historySection, ok := rawMap["history"].(map[string]interface{}); ok {
		if has(historySection, "enabled") {
			cfg.History.Enabled = yamlCfg.History.Enabled
		}
		if has(historySection, "db_path") {
			cfg.History.DBPath = yamlCfg.History.DBPath
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .filescout/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ConfigFile))
}

// Overrides carries CLI flag values. Non-nil fields take precedence over the config file.
type Overrides struct {
	Pattern        *string
	Encoding       *string
	FollowSymlinks *bool
	Processor      *string
	HandlerName    *string
	LogLevel       *string
	LogDir         *string
	MaxErrorLines  *int
	RecordHistory  *bool
}

// MergeWithFlags merges CLI flags into the configuration
func (c *Config) MergeWithFlags(o Overrides) {
	if o.Pattern != nil {
		c.Pattern = *o.Pattern
	}
	if o.Encoding != nil {
		c.Encoding = *o.Encoding
	}
	if o.FollowSymlinks != nil {
		c.FollowSymlinks = *o.FollowSymlinks
	}
	if o.Processor != nil {
		c.Processor = *o.Processor
	}
	if o.HandlerName != nil {
		c.HandlerName = *o.HandlerName
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.MaxErrorLines != nil {
		c.MaxErrorLines = *o.MaxErrorLines
	}
	if o.RecordHistory != nil {
		c.History.Enabled = *o.RecordHistory
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if strings.TrimSpace(c.HandlerName) == "" {
		return fmt.Errorf("handler_name cannot be empty")
	}

	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce must be >= 0, got %v", c.WatchDebounce)
	}

	return nil
}
