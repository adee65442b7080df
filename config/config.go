package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// RootScope is the scope name that refers to the workflow's root scope.
	RootScope = "root"

	// Default monitoring settings
	defaultMetricsPrefix = "flowscope"
	defaultJobName       = "flowscope"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stderr"
)

// Config represents the complete application configuration
type Config struct {
	Workflow   WorkflowConfig   `yaml:"workflow"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkflowConfig declares a workflow: its child scopes and its tasks in
// registration order.
type WorkflowConfig struct {
	Name   string        `yaml:"name"`
	Scopes []ScopeConfig `yaml:"scopes"`
	Tasks  []TaskConfig  `yaml:"tasks"`
}

// ScopeConfig declares a child scope of the workflow's root scope.
type ScopeConfig struct {
	Name string `yaml:"name"`
}

// TaskConfig declares a task.
type TaskConfig struct {
	Name string `yaml:"name"`
	// Scope is "root" or the name of a declared child scope. Defaults to "root".
	Scope string `yaml:"scope"`
}

// MonitoringConfig holds metrics settings. Metrics are pushed only when
// VictoriaMetricsURL is set.
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	return c.Workflow.Validate()
}

// Validate checks that the workflow is named, that child scope names are
// unique and not "root", and that every task names a declared scope.
func (w WorkflowConfig) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow name is required")
	}

	scopes := make(map[string]bool, len(w.Scopes))
	for i, s := range w.Scopes {
		if s.Name == "" {
			return fmt.Errorf("scope %d: name is required", i)
		}
		if s.Name == RootScope {
			return fmt.Errorf("scope %d: %q is reserved for the root scope", i, RootScope)
		}
		if scopes[s.Name] {
			return fmt.Errorf("scope %q declared more than once", s.Name)
		}
		scopes[s.Name] = true
	}

	for i, t := range w.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task %d: name is required", i)
		}
		if t.Scope != RootScope && !scopes[t.Scope] {
			return fmt.Errorf("task %q: unknown scope %q", t.Name, t.Scope)
		}
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	for i := range c.Workflow.Tasks {
		if c.Workflow.Tasks[i].Scope == "" {
			c.Workflow.Tasks[i].Scope = RootScope
		}
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
