package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr     = ":8080"
	DefaultLogLevel = "warn"
)

// ErrNotFound is returned by LoadDefault when no config file exists.
var ErrNotFound = errors.New("no coordcard config found")

// Default returns the settings used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, "")
	return cfg
}

// Load reads and parses a configuration from the given YAML file path.
// After parsing, it applies defaults and resolves defaults.card relative to
// the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./coordcard.yaml, ~/.coordcard/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"coordcard.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".coordcard", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("%w (searched: %v)", ErrNotFound, candidates)
}

func applyDefaults(cfg *Config, baseDir string) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if c := cfg.Defaults.Card; c != "" && baseDir != "" && !filepath.IsAbs(c) {
		cfg.Defaults.Card = filepath.Join(baseDir, c)
	}
}
