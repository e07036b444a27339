// Package hubconfig loads and validates config.yaml for one hub
// directory, following the teacher's pkg/config global-singleton pattern
// (mutex-protected, value-returning Get, atomic Update* functions) adapted
// from the teacher's JSON project config to this module's YAML hub config.
package hubconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"accord/internal/model"
)

// Service describes one dispatch target service registered with the hub.
type Service struct {
	Name       string   `yaml:"name"`
	WorkingDir string   `yaml:"working_dir"`
	Backend    string   `yaml:"backend"` // "oneshot" | "persistent" | "shell"
	Model      string   `yaml:"model,omitempty"`
	ShellCmd   []string `yaml:"shell_cmd,omitempty"`
}

// Project identifies the hub's owning project.
type Project struct {
	Name string `yaml:"name"`
}

// Config is the parsed shape of config.yaml.
type Config struct {
	Project          Project              `yaml:"project"`
	Services         []Service            `yaml:"services"`
	Workers          int                  `yaml:"workers"`
	TickInterval     time.Duration        `yaml:"tick_interval"`
	RequestTimeout   time.Duration        `yaml:"request_timeout"`
	MaxAttempts      int                  `yaml:"max_attempts"`
	MaxBudgetUSD     float64              `yaml:"max_budget_usd"`
	SessionPolicy    model.RotationPolicy `yaml:"-"`
	MaxRequests      int                  `yaml:"session_max_requests"`
	MaxAgeSeconds    int                  `yaml:"session_max_age_seconds"`
	GitRemote        string               `yaml:"git_remote,omitempty"`
	TestAgentService string               `yaml:"test_agent_service,omitempty"`
}

var (
	mu      sync.RWMutex
	current *Config
	hubDir  string
)

// defaults applied when config.yaml omits a value.
const (
	defaultTickInterval   = 5 * time.Second
	defaultMaxAttempts    = 3
	defaultMaxRequests    = 20
	defaultMaxAgeSeconds  = 3600
	defaultRequestTimeout = 10 * time.Minute
	defaultWorkers        = 4
)

// Load reads and validates dir/config.yaml into the package-level
// singleton. ConfigError is returned (and is fatal at startup per spec
// §7) for a missing file, an empty services list, or a missing
// project.name.
func Load(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	hubDir = dir
	path := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.ConfigError{Reason: "missing config.yaml at " + path}
		}
		return &model.ConfigError{Reason: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &model.ConfigError{Reason: "parse config.yaml: " + err.Error()}
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return err
	}

	current = &cfg
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.MaxAgeSeconds == 0 {
		cfg.MaxAgeSeconds = defaultMaxAgeSeconds
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaultWorkers
	}
	cfg.SessionPolicy = model.RotationPolicy{
		MaxRequests: cfg.MaxRequests,
		MaxAge:      time.Duration(cfg.MaxAgeSeconds) * time.Second,
	}
}

func validate(cfg *Config) error {
	if cfg.Project.Name == "" {
		return &model.ConfigError{Reason: "project.name is required"}
	}
	if len(cfg.Services) == 0 {
		return &model.ConfigError{Reason: "services list cannot be empty"}
	}
	return nil
}

// Get returns the current config by value, preventing external mutation.
// Load must be called first.
func Get() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Config{}, fmt.Errorf("hubconfig not initialized - call Load first")
	}
	return *current, nil
}

// ServiceNames returns the configured service names in registration order.
func ServiceNames() ([]string, error) {
	cfg, err := Get()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Services))
	for i, s := range cfg.Services {
		names[i] = s.Name
	}
	return names, nil
}

// UpdateMaxAttempts atomically replaces MaxAttempts and persists it.
func UpdateMaxAttempts(n int) error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return fmt.Errorf("hubconfig not initialized")
	}
	if n <= 0 {
		return &model.ConfigError{Reason: "max_attempts must be positive"}
	}
	updated := *current
	updated.MaxAttempts = n
	if err := save(&updated); err != nil {
		return err
	}
	current = &updated
	return nil
}

func save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(hubDir, "config.yaml"), data, 0o644)
}
