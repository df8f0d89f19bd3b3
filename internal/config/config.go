// Package config loads bookstage.yaml, the .env files next to it and the
// BOOKSTAGE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "bookstage.yaml"

// Config represents the application configuration.
type Config struct {
	Book    BookConfig    `yaml:"book"`
	MDBook  MDBookConfig  `yaml:"mdbook"`
	Watch   WatchConfig   `yaml:"watch"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BookConfig describes the book layout.
type BookConfig struct {
	// Root is the book root; empty means the working directory.
	Root string `yaml:"root,omitempty"`
	// Manifest is the table of contents, relative to Root.
	Manifest string `yaml:"manifest"`
	// StagingDir is where referenced files are moved, relative to Root.
	StagingDir string `yaml:"staging_dir"`
	// StrictPaths rejects absolute and ".." manifest entries.
	StrictPaths bool `yaml:"strict_paths"`
}

// MDBookConfig configures the external binary.
type MDBookConfig struct {
	Binary string            `yaml:"binary"`
	Args   []string          `yaml:"args,omitempty"`
	Env    map[string]string `yaml:"env,omitempty"`
}

// EnvList returns Env as sorted KEY=VALUE pairs.
func (m MDBookConfig) EnvList() []string {
	if len(m.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.Env))
	for k, v := range m.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// WatchConfig configures `bookstage watch`.
type WatchConfig struct {
	// Debounce is how long changes must settle before a rebuild ("300ms").
	Debounce string `yaml:"debounce"`
	// PollInterval adds a periodic rebuild; empty or "0" disables it.
	PollInterval string `yaml:"poll_interval,omitempty"`
	// Ignore lists directory names below the root that never trigger a rebuild.
	Ignore []string `yaml:"ignore,omitempty"`
}

// DebounceDuration returns the parsed debounce. Call after Validate.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, _ := parseDuration(w.Debounce)
	return d
}

// PollDuration returns the parsed poll interval, zero when disabled.
func (w WatchConfig) PollDuration() time.Duration {
	d, _ := parseDuration(w.PollInterval)
	return d
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is written after every run for the node_exporter textfile collector.
	Textfile string `yaml:"textfile,omitempty"`
	// Listen serves /metrics while `bookstage watch` runs ("127.0.0.1:9464").
	Listen string `yaml:"listen,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at configPath. A missing file is not an error;
// defaults apply. Environment overrides are applied last, then the result is
// validated.
func Load(configPath string) (*Config, error) {
	LoadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(configPath) // #nosec G304 -- user supplied config path
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config %s: %w", configPath, err)
		}
	}

	applyDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Book.Manifest == "" {
		cfg.Book.Manifest = "src/SUMMARY.md"
	}
	if cfg.Book.StagingDir == "" {
		cfg.Book.StagingDir = "src"
	}
	if cfg.MDBook.Binary == "" {
		cfg.MDBook.Binary = "mdbook"
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "300ms"
	}
	if cfg.Watch.Ignore == nil {
		cfg.Watch.Ignore = []string{"book", "target", "node_modules"}
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.MDBook.Env = map[string]string{"RUST_LOG": "warn"}
	example.Watch.PollInterval = "0s"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil { // #nosec G306 -- config is not secret
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
