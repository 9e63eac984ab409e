// Package config loads the replicasync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"replicasync/internal/artifacts"
	"replicasync/internal/filter"
	"replicasync/internal/replica"
	"replicasync/internal/util"
)

// EnvConfigDir overrides the config directory.
const EnvConfigDir = "REPLICASYNC_CONFIG_DIR"

// getConfigDir returns the config directory path.
// Uses REPLICASYNC_CONFIG_DIR env var if set, otherwise defaults to ~/.replicasync.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".replicasync")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// ConfigPath returns the default config file path
func ConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir creates the config directory and seeds the default config file.
func InitConfigDir() error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, artifacts.DefaultConfig, 0600); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	}
	return nil
}

// Ignore lists the ignore rules shared by all replicas.
type Ignore struct {
	Paths    []string `yaml:"paths"`
	Regexes  []string `yaml:"regexes"`
	Patterns []string `yaml:"patterns"` // gitignore syntax
}

// LockRetry configures how archive lock failures are retried.
type LockRetry struct {
	Attempts uint `yaml:"attempts"`
	DelayMS  int  `yaml:"delay_ms"`
}

// Config is the contents of config.yaml.
type Config struct {
	Roots      []string  `yaml:"roots"`
	ArchiveDir string    `yaml:"archive_dir"` // default: <config dir>/archive
	Journal    string    `yaml:"journal"`     // default: <config dir>/journal.db
	LogLevel   string    `yaml:"log_level"`   // trace, debug, info, warn, off
	Ignore     Ignore    `yaml:"ignore"`
	LockRetry  LockRetry `yaml:"lock_retry"`
}

// loadDefaultConfig parses the embedded default config.
func loadDefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(artifacts.DefaultConfig, &cfg); err != nil {
		panic("failed to parse embedded default config: " + err.Error())
	}
	return cfg
}

// Default returns the embedded defaults with paths filled in.
func Default() *Config {
	cfg := loadDefaultConfig()
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join(getConfigDir(), "archive")
	}
	if cfg.Journal == "" {
		cfg.Journal = filepath.Join(getConfigDir(), "journal.db")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "off"
	}
	if cfg.LockRetry.Attempts == 0 {
		cfg.LockRetry.Attempts = util.DefaultLockRetry().Attempts
	}
	if cfg.LockRetry.DelayMS == 0 {
		cfg.LockRetry.DelayMS = int(util.DefaultLockRetry().Delay / time.Millisecond)
	}
}

// Load reads the config file at path. A missing file yields the embedded
// defaults. Roots are not validated here; call ReplicaRoots for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := loadDefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fields that can be checked without touching replicas.
func (cfg *Config) Validate() error {
	if _, err := cfg.Rules(); err != nil {
		return err
	}
	switch cfg.NormalizedLogLevel() {
	case "trace", "debug", "info", "warn", "off":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if cfg.LockRetry.DelayMS < 0 {
		return fmt.Errorf("lock_retry.delay_ms must not be negative")
	}
	return nil
}

// NormalizedLogLevel returns the lowercase log level, mapping "none" to "off".
func (cfg *Config) NormalizedLogLevel() string {
	level := strings.ToLower(cfg.LogLevel)
	if level == "none" || level == "" {
		return "off"
	}
	return level
}

// ReplicaRoots resolves and validates the configured roots.
func (cfg *Config) ReplicaRoots() (replica.Roots, error) {
	return replica.NewRoots(cfg.Roots...)
}

// Rules compiles the ignore section.
func (cfg *Config) Rules() (*filter.Rules, error) {
	return filter.Compile(cfg.Ignore.Paths, cfg.Ignore.Regexes, cfg.Ignore.Patterns)
}

// LockRetryPolicy converts the lock_retry section.
func (cfg *Config) LockRetryPolicy() util.LockRetry {
	return util.LockRetry{
		Attempts: cfg.LockRetry.Attempts,
		Delay:    time.Duration(cfg.LockRetry.DelayMS) * time.Millisecond,
	}
}

// Save writes cfg to path.
func (cfg *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := []byte("# replicasync configuration\n# See: replicasync --help\n\n")
	return os.WriteFile(path, append(header, data...), 0600)
}
