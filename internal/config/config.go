// Package config loads contentpipe settings from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "CONTENTPIPE_CONFIG"
	databaseEnv   = "CONTENTPIPE_DB"
	catalogEnv    = "CONTENTPIPE_CATALOG"
	apiKeyEnv     = "OPENAI_API_KEY"
	modelEnv      = "CONTENTPIPE_MODEL"
	baseURLEnv    = "CONTENTPIPE_BASE_URL"
	logLevelEnv   = "CONTENTPIPE_LOG_LEVEL"
)

// Provider kinds.
const (
	ProviderOpenAI   = "openai"
	ProviderScripted = "scripted"
)

// Config holds every setting the binary needs.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Provider ProviderConfig `yaml:"provider"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Selector SelectorConfig `yaml:"selector"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig locates the CUE action catalog (a file or a directory).
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig selects and configures the generative service.
type ProviderConfig struct {
	Kind    string   `yaml:"kind"` // openai | scripted
	Model   string   `yaml:"model"`
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	Script  string   `yaml:"script"` // reply file for the scripted provider
}

// JobsConfig configures the worker pool and its retry policy.
type JobsConfig struct {
	Workers        int      `yaml:"workers"`
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
}

// SelectorConfig configures batch selection.
type SelectorConfig struct {
	Window int `yaml:"window"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "90s", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "contentpipe.db"},
		Catalog:  CatalogConfig{Path: "catalog"},
		Provider: ProviderConfig{
			Kind:    ProviderOpenAI,
			Model:   "gpt-4o-mini",
			Timeout: Duration(90 * time.Second),
		},
		Jobs: JobsConfig{
			Workers:        4,
			MaxAttempts:    5,
			InitialBackoff: Duration(2 * time.Second),
			MaxBackoff:     Duration(time.Minute),
			Multiplier:     2,
		},
		Selector: SelectorConfig{Window: 10},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path falls back to $CONTENTPIPE_CONFIG;
// if that is unset too, only defaults and environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := Parse(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg. Keys absent from data keep their current
// values; unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(catalogEnv); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv(modelEnv); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv(baseURLEnv); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var problems []string
	if c.Database.Path == "" {
		problems = append(problems, "database.path is empty")
	}
	if c.Catalog.Path == "" {
		problems = append(problems, "catalog.path is empty")
	}
	switch c.Provider.Kind {
	case ProviderOpenAI, ProviderScripted:
	default:
		problems = append(problems, fmt.Sprintf("provider.kind %q must be openai or scripted", c.Provider.Kind))
	}
	if c.Provider.Kind == ProviderScripted && c.Provider.Script == "" {
		problems = append(problems, "provider.script is required for the scripted provider")
	}
	if c.Provider.Timeout < 0 {
		problems = append(problems, "provider.timeout is negative")
	}
	if c.Jobs.Workers < 1 {
		problems = append(problems, "jobs.workers must be at least 1")
	}
	if c.Jobs.MaxAttempts < 1 {
		problems = append(problems, "jobs.max_attempts must be at least 1")
	}
	if c.Jobs.InitialBackoff < 0 || c.Jobs.MaxBackoff < 0 {
		problems = append(problems, "jobs backoff durations must not be negative")
	}
	if c.Selector.Window < 1 {
		problems = append(problems, "selector.window must be at least 1")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
