// Package profiles resolves reasoning patterns, reasoning levels and species
// profiles into immutable agent configurations.
package profiles

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"ethicsengine/internal/models"
)

// ConfigError reports a bad or missing configuration value. It is fatal to
// the task or run being configured, never to the process.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Msg)
}

// LevelSpec holds the per-reasoning-level tuning parameters.
type LevelSpec struct {
	MaxDepth    int     `yaml:"max_depth" json:"max_depth"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// DefaultLevelSpecs returns the built-in reasoning level specifications.
func DefaultLevelSpecs() map[string]LevelSpec {
	return map[string]LevelSpec{
		"low":    {MaxDepth: 1, MaxTokens: 50, Temperature: 0.3},
		"medium": {MaxDepth: 2, MaxTokens: 100, Temperature: 0.5},
		"high":   {MaxDepth: 3, MaxTokens: 150, Temperature: 0.7},
	}
}

// traits accepts either a single string or a list of strings in species data.
type traits []string

func (t *traits) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = []string{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*t = list
	return nil
}

// Resolver combines species profiles and golden patterns loaded from the data
// directory into agent configurations.
type Resolver struct {
	species  map[string]traits
	patterns map[string]string
	specs    map[string]LevelSpec
}

// NewResolver loads species.json and golden_patterns.json from dataDir.
func NewResolver(dataDir string, specs map[string]LevelSpec) (*Resolver, error) {
	if specs == nil {
		specs = DefaultLevelSpecs()
	}

	r := &Resolver{specs: specs}

	speciesPath := filepath.Join(dataDir, "species.json")
	if err := loadJSONFile(speciesPath, &r.species); err != nil {
		return nil, fmt.Errorf("load species: %w", err)
	}
	patternsPath := filepath.Join(dataDir, "golden_patterns.json")
	if err := loadJSONFile(patternsPath, &r.patterns); err != nil {
		return nil, fmt.Errorf("load golden patterns: %w", err)
	}

	if len(r.species) == 0 {
		return nil, &ConfigError{Field: "species", Msg: "no species defined in " + speciesPath}
	}
	if len(r.patterns) == 0 {
		return nil, &ConfigError{Field: "pattern", Msg: "no patterns defined in " + patternsPath}
	}
	return r, nil
}

// Resolve validates the tuple and returns the immutable configuration.
// Unknown names fail fast rather than propagating free strings downstream.
func (r *Resolver) Resolve(pattern, level, species string) (models.AgentConfig, error) {
	patternText, ok := r.patterns[pattern]
	if !ok {
		return models.AgentConfig{}, &ConfigError{Field: "pattern", Msg: fmt.Sprintf("unknown pattern %q", pattern)}
	}
	spec, ok := r.specs[level]
	if !ok {
		return models.AgentConfig{}, &ConfigError{Field: "reasoning_level", Msg: fmt.Sprintf("unknown reasoning level %q", level)}
	}
	tr, ok := r.species[species]
	if !ok {
		return models.AgentConfig{}, &ConfigError{Field: "species", Msg: fmt.Sprintf("unknown species %q", species)}
	}

	return models.AgentConfig{
		Pattern:        pattern,
		ReasoningLevel: level,
		Species:        species,
		Traits:         append([]string(nil), tr...),
		PatternText:    patternText,
		MaxDepth:       spec.MaxDepth,
		MaxTokens:      spec.MaxTokens,
		Temperature:    spec.Temperature,
	}, nil
}

// ResolveAll resolves the cartesian product of the given patterns, levels and
// species, failing on the first unknown value.
func (r *Resolver) ResolveAll(patterns, levels, species []string) ([]models.AgentConfig, error) {
	var configs []models.AgentConfig
	for _, p := range patterns {
		for _, l := range levels {
			for _, s := range species {
				cfg, err := r.Resolve(p, l, s)
				if err != nil {
					return nil, err
				}
				configs = append(configs, cfg)
			}
		}
	}
	return configs, nil
}

// Species returns the known species names, sorted.
func (r *Resolver) Species() []string { return sortedKeys(r.species) }

// Patterns returns the known golden pattern names, sorted.
func (r *Resolver) Patterns() []string { return sortedKeys(r.patterns) }

// Levels returns the known reasoning levels, sorted.
func (r *Resolver) Levels() []string { return sortedKeys(r.specs) }

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loadJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
