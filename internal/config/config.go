// Package config loads tool configuration from .code-covered.yaml
// with defaults and validation. CLI flags override file values;
// overrides pass through the same validation as the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory
// when no explicit path is given.
const DefaultPath = ".code-covered.yaml"

// Config holds the tool's file-configurable settings.
type Config struct {
	Analysis struct {
		// SourceRoot resolves relative paths from the coverage report.
		SourceRoot string `yaml:"source_root"`

		// Workers bounds per-file parallelism.
		Workers int `yaml:"workers"`

		// ComplexityThreshold escalates entirely-missed Go functions
		// at or above this cyclomatic complexity.
		ComplexityThreshold int `yaml:"complexity_threshold"`
	} `yaml:"analysis"`

	Output struct {
		// Format is the default output format: text or json.
		Format string `yaml:"format"`

		// Priority filters suggestions to this tier or more severe.
		// Empty means no filter.
		Priority string `yaml:"priority"`

		// Limit caps displayed suggestions. Zero means unlimited.
		Limit int `yaml:"limit"`
	} `yaml:"output"`

	Gating struct {
		// FailOn is the severity threshold for a failing exit:
		// none, any, or a tier name.
		FailOn string `yaml:"fail_on"`
	} `yaml:"gating"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Analysis.Workers = 4
	cfg.Analysis.ComplexityThreshold = 10
	cfg.Output.Format = "text"
	cfg.Gating.FailOn = "none"
	return cfg
}

// Load reads configuration from path, or from DefaultPath when path
// is empty. A missing default file is not an error; an explicitly
// named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must be >= 0, got %d", c.Analysis.Workers)
	}
	if c.Analysis.ComplexityThreshold < 1 {
		return fmt.Errorf("analysis.complexity_threshold must be >= 1, got %d",
			c.Analysis.ComplexityThreshold)
	}
	if c.Output.Limit < 0 {
		return fmt.Errorf("output.limit must be >= 0, got %d", c.Output.Limit)
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output.format must be 'text' or 'json', got %q", c.Output.Format)
	}

	switch c.Output.Priority {
	case "", "critical", "high", "medium", "low":
	default:
		return fmt.Errorf("output.priority must be a tier name, got %q", c.Output.Priority)
	}

	switch c.Gating.FailOn {
	case "none", "any", "critical", "high", "medium", "low":
	default:
		return fmt.Errorf("gating.fail_on must be 'none', 'any', or a tier name, got %q",
			c.Gating.FailOn)
	}
	return nil
}
