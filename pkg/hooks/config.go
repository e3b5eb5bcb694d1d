// Package hooks runs user commands before and after an export, configured
// in hooks.yaml next to the main config file.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase is when a hook runs.
type Phase string

const (
	PreExport  Phase = "pre-export"
	PostExport Phase = "post-export"
)

// FileName is the hooks file inside the config directory.
const FileName = "hooks.yaml"

// DefaultTimeout applies to hooks without a timeout.
const DefaultTimeout = 30 * time.Second

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// Hook is one shell command.
type Hook struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"` // values may reference $IMPACTVIEW_* variables
	OnError string            `yaml:"on_error,omitempty"`
}

// Config is the parsed hooks file.
type Config struct {
	Hooks ByPhase `yaml:"hooks"`
}

// ByPhase groups hooks by phase, in run order.
type ByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty"`
}

// For returns the hooks of phase.
func (c *Config) For(phase Phase) []Hook {
	if c == nil {
		return nil
	}
	switch phase {
	case PreExport:
		return c.Hooks.PreExport
	case PostExport:
		return c.Hooks.PostExport
	}
	return nil
}

// Empty reports whether no hooks are configured.
func (c *Config) Empty() bool {
	return c == nil || len(c.Hooks.PreExport)+len(c.Hooks.PostExport) == 0
}

// ExportContext describes the export a hook runs for. It reaches the
// command as IMPACTVIEW_EXPORT_* environment variables.
type ExportContext struct {
	Target    string
	Format    string
	Dir       string
	Paths     []string // empty before the export
	Timestamp time.Time
}

// Env returns the context as environment entries.
func (c ExportContext) Env() []string {
	return []string{
		"IMPACTVIEW_EXPORT_TARGET=" + c.Target,
		"IMPACTVIEW_EXPORT_FORMAT=" + c.Format,
		"IMPACTVIEW_EXPORT_DIR=" + c.Dir,
		"IMPACTVIEW_EXPORT_PATHS=" + strings.Join(c.Paths, string(os.PathListSeparator)),
		fmt.Sprintf("IMPACTVIEW_EXPORT_COUNT=%d", len(c.Paths)),
		"IMPACTVIEW_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Load reads dir/hooks.yaml. A missing file yields an empty Config.
// Warnings name hooks that were skipped.
func Load(dir string) (*Config, []string, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil, nil
		}
		return nil, nil, fmt.Errorf("reading hooks config: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a hooks file and fills defaults. name is used in errors.
func Parse(data []byte, name string) (*Config, []string, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	var warnings []string
	cfg.Hooks.PreExport, warnings = normalize(cfg.Hooks.PreExport, PreExport, warnings)
	cfg.Hooks.PostExport, warnings = normalize(cfg.Hooks.PostExport, PostExport, warnings)
	return &cfg, warnings, nil
}

func normalize(hooks []Hook, phase Phase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i, h := range hooks {
		if strings.TrimSpace(h.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has an empty command; skipped", phase, i+1))
			continue
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			// A failing pre-export hook cancels the export; post-export
			// failures are reported only.
			if phase == PreExport {
				h.OnError = OnErrorFail
			} else {
				h.OnError = OnErrorContinue
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %d: unknown on_error %q, using %q", phase, i+1, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, h)
	}
	return out, warnings
}

// UnmarshalYAML accepts "30s" style durations and bare seconds.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}
	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}
	h.Name, h.Command, h.Env, h.OnError = dto.Name, dto.Command, dto.Env, dto.OnError

	if dto.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(dto.Timeout)
	if err == nil {
		h.Timeout = d
		return nil
	}
	var seconds float64
	if _, scanErr := fmt.Sscanf(dto.Timeout, "%f", &seconds); scanErr != nil {
		return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
	}
	h.Timeout = time.Duration(seconds * float64(time.Second))
	return nil
}
