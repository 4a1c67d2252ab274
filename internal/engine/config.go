package engine

import (
	"fmt"
	"os"
	"time"

	"ethicsengine/internal/backend"
	"ethicsengine/internal/runner"
	"ethicsengine/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Settings is the on-disk engine configuration. All fields have working
// defaults so a missing config file is not an error for the CLI.
type Settings struct {
	Provider string `yaml:"provider"` // openai | anthropic
	Model    string `yaml:"model"`

	DataDir    string `yaml:"data_dir"`
	ResultsDir string `yaml:"results_dir"`
	DBPath     string `yaml:"db_path"`

	MaxConcurrent      int `yaml:"max_concurrent"`
	MaxAttempts        int `yaml:"max_attempts"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Provider:           "openai",
		Model:              "gpt-4o-mini",
		DataDir:            "data",
		ResultsDir:         "results",
		DBPath:             "results/ethicsengine.db",
		MaxConcurrent:      scheduler.DefaultMaxConcurrent,
		MaxAttempts:        3,
		CallTimeoutSeconds: 60,
	}
}

// LoadSettings reads settings from a YAML file, filling unset fields with
// defaults. A missing file yields the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	return s.normalized(), nil
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.Provider == "" {
		s.Provider = d.Provider
	}
	if s.Model == "" {
		s.Model = d.Model
	}
	if s.DataDir == "" {
		s.DataDir = d.DataDir
	}
	if s.ResultsDir == "" {
		s.ResultsDir = d.ResultsDir
	}
	if s.DBPath == "" {
		s.DBPath = d.DBPath
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = d.MaxConcurrent
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.CallTimeoutSeconds <= 0 {
		s.CallTimeoutSeconds = d.CallTimeoutSeconds
	}
	return s
}

// SchedulerConfig derives the scheduler ceiling from the settings.
func (s Settings) SchedulerConfig() *scheduler.Config {
	return &scheduler.Config{MaxConcurrent: s.MaxConcurrent}
}

// RunnerConfig derives the retry policy from the settings.
func (s Settings) RunnerConfig() runner.Config {
	cfg := runner.DefaultConfig()
	cfg.MaxAttempts = s.MaxAttempts
	cfg.CallTimeout = time.Duration(s.CallTimeoutSeconds) * time.Second
	return cfg
}

// NewBackendClient builds the backend named by the settings, reading the
// provider API key from the environment.
func NewBackendClient(s Settings) (backend.Client, error) {
	switch s.Provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return backend.NewOpenAIClient(key, s.Model), nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return backend.NewAnthropicClient(key, s.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai or anthropic)", s.Provider)
	}
}
