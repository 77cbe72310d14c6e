package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-malt/internal/log"
	"github.com/l3aro/go-malt/pkg/converters"
)

// Dir is the name of the configuration directory, both under the user's home
// and in a project.
const Dir = ".gmalt"

// Config holds all configuration for gmalt
type Config struct {
	// Recursive converts user functions reached from converted ones.
	Recursive bool `yaml:"recursive" env:"GMALT_RECURSIVE"`

	// UserRequested makes any conversion failure an error instead of keeping
	// the original function.
	UserRequested bool `yaml:"user_requested" env:"GMALT_USER_REQUESTED"`

	// Features enables optional rewrites (ALL, LISTS, ASSERT_STATEMENTS, ...).
	Features []string `yaml:"features" env:"GMALT_FEATURES"`

	// Rewrite cache
	CachePath       string `yaml:"cache_path" env:"GMALT_CACHE_PATH"`
	CacheMaxEntries int    `yaml:"cache_max_entries" env:"GMALT_CACHE_MAX_ENTRIES"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GMALT_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"GMALT_JSON_LOGS"`

	// IgnoreFile lists paths skipped when rewriting a directory.
	IgnoreFile string `yaml:"ignore_file" env:"GMALT_IGNORE_FILE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Recursive:       false,
		UserRequested:   true,
		Features:        nil,
		CachePath:       filepath.Join(Dir, "cache.msgpack"),
		CacheMaxEntries: 1024,
		LogLevel:        "info",
		JSONLogs:        false,
		IgnoreFile:      ".gmaltignore",
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gmalt/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(Dir, "config.yaml")
	}
	return filepath.Join(home, Dir, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gmalt/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(Dir, "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gmalt/config.yaml)
// 3. Global config (~/.gmalt/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		if err := cfg.mergeFile(path, false); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.mergeFile(path, true); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GMALT_RECURSIVE"); v != "" {
		cfg.Recursive = parseBool(v)
	}
	if v := os.Getenv("GMALT_USER_REQUESTED"); v != "" {
		cfg.UserRequested = parseBool(v)
	}
	if v := os.Getenv("GMALT_FEATURES"); v != "" {
		cfg.Features = splitList(v)
	}
	if v := os.Getenv("GMALT_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("GMALT_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GMALT_CACHE_MAX_ENTRIES: %w", err)
		}
		cfg.CacheMaxEntries = n
	}
	if v := os.Getenv("GMALT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GMALT_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	if v := os.Getenv("GMALT_IGNORE_FILE"); v != "" {
		cfg.IgnoreFile = v
	}
	return nil
}

// Validate checks that the configuration has valid fields
func (c *Config) Validate() error {
	if _, err := c.ConverterFeatures(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must be non-negative")
	}
	return nil
}

// ConverterFeatures parses the configured feature names.
func (c *Config) ConverterFeatures() ([]converters.Feature, error) {
	features := make([]converters.Feature, 0, len(c.Features))
	for _, name := range c.Features {
		f, err := converters.ParseFeature(name)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

// ConverterOptions returns the conversion options the configuration selects.
func (c *Config) ConverterOptions() (converters.Options, error) {
	features, err := c.ConverterFeatures()
	if err != nil {
		return converters.Options{}, err
	}
	return converters.Options{
		Recursive:     c.Recursive,
		UserRequested: c.UserRequested,
		Features:      features,
	}, nil
}

// Logger builds the logger the configuration describes.
func (c *Config) Logger() log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.New(log.LoggerConfig{Level: level, JSONOutput: c.JSONLogs})
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
