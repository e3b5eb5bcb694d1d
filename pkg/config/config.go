// Package config handles loading and saving impactview configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/impactview/config.yaml (or config.toml)
//   - State:   ~/.local/state/impactview/ (session ids)
//
// Environment variables override the backend and mirror URLs:
// IMPACTVIEW_ANALYZE_URL, IMPACTVIEW_CHAT_URL and IMPACTVIEW_NATS_URL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const appName = "impactview"

// Default backend endpoints.
const (
	DefaultAnalyzeURL = "http://localhost:8081/promptAnalyzer/impactedModules"
	DefaultChatURL    = "http://localhost:8080/api/chat/impactanalyser"
)

// Duration is a time.Duration that reads "200ms"-style strings from YAML
// and TOML.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// BackendConfig locates the analysis service.
type BackendConfig struct {
	AnalyzeURL string   `yaml:"analyze_url,omitempty" toml:"analyze_url"`
	ChatURL    string   `yaml:"chat_url,omitempty" toml:"chat_url"`
	Timeout    Duration `yaml:"timeout,omitempty" toml:"timeout"`
	RateLimit  float64  `yaml:"rate_limit,omitempty" toml:"rate_limit"` // requests per second, 0 disables
}

// GraphConfig tunes the graph view.
type GraphConfig struct {
	SanitizeIDs bool    `yaml:"sanitize_ids,omitempty" toml:"sanitize_ids"`
	FitPadding  float64 `yaml:"fit_padding,omitempty" toml:"fit_padding"`
}

// S3Config is the optional upload destination for exports.
type S3Config struct {
	Bucket   string `yaml:"bucket,omitempty" toml:"bucket"`
	Region   string `yaml:"region,omitempty" toml:"region"`
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint"`
	Prefix   string `yaml:"prefix,omitempty" toml:"prefix"`
}

// Enabled reports whether uploads are configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// ExportConfig controls file export.
type ExportConfig struct {
	Dir         string   `yaml:"dir,omitempty" toml:"dir"`
	SettleDelay Duration `yaml:"settle_delay,omitempty" toml:"settle_delay"`
	S3          S3Config `yaml:"s3,omitempty" toml:"s3"`
}

// NATSConfig enables the panel mirror.
type NATSConfig struct {
	URL string `yaml:"url,omitempty" toml:"url"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	SplitRatio float64 `yaml:"split_ratio,omitempty" toml:"split_ratio"` // chat share of the width when the panel is open (0.2-0.8)
	Style      string  `yaml:"style,omitempty" toml:"style"`             // glamour style; empty detects from the terminal
}

// Config is the top-level configuration for impactview.
type Config struct {
	Backend BackendConfig `yaml:"backend,omitempty" toml:"backend"`
	Graph   GraphConfig   `yaml:"graph,omitempty" toml:"graph"`
	Export  ExportConfig  `yaml:"export,omitempty" toml:"export"`
	NATS    NATSConfig    `yaml:"nats,omitempty" toml:"nats"`
	UI      UIConfig      `yaml:"ui,omitempty" toml:"ui"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			AnalyzeURL: DefaultAnalyzeURL,
			ChatURL:    DefaultChatURL,
			Timeout:    Duration(2 * time.Minute),
			RateLimit:  2,
		},
		Graph: GraphConfig{
			FitPadding: 40,
		},
		Export: ExportConfig{
			Dir:         ".",
			SettleDelay: Duration(200 * time.Millisecond),
		},
		UI: UIConfig{
			SplitRatio: 0.4,
		},
	}
}

// ConfigDir returns the XDG config directory for impactview.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for impactview.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the config file to read: config.yaml, or config.toml
// when only that one exists.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	return yamlPath
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig (plus env overrides) if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. The format follows the
// extension; anything but .toml is YAML.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Export.Dir = expandHome(cfg.Export.Dir)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	dir := ConfigDir()
	if dir == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, filepath.Join(dir, "config.yaml"))
}

// SaveTo writes the config to a specific path as YAML.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate rejects values the UI cannot work with.
func (c Config) Validate() error {
	if c.UI.SplitRatio != 0 && (c.UI.SplitRatio < 0.2 || c.UI.SplitRatio > 0.8) {
		return fmt.Errorf("ui.split_ratio %.2f out of range [0.2, 0.8]", c.UI.SplitRatio)
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend.rate_limit must not be negative")
	}
	if c.Graph.FitPadding < 0 {
		return fmt.Errorf("graph.fit_padding must not be negative")
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IMPACTVIEW_ANALYZE_URL"); v != "" {
		c.Backend.AnalyzeURL = v
	}
	if v := os.Getenv("IMPACTVIEW_CHAT_URL"); v != "" {
		c.Backend.ChatURL = v
	}
	if v := os.Getenv("IMPACTVIEW_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
