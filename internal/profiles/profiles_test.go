package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	species := `{
		"Jiminies": ["Collective harmony", "Risk averse"],
		"Neutral": "No dominant traits"
	}`
	patterns := `{
		"Deontological": "Judge actions by rules and duties.",
		"Utilitarian": "Maximize aggregate wellbeing."
	}`

	if err := os.WriteFile(filepath.Join(dir, "species.json"), []byte(species), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "golden_patterns.json"), []byte(patterns), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestResolve(t *testing.T) {
	r, err := NewResolver(writeTestData(t), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	cfg, err := r.Resolve("Deontological", "medium", "Jiminies")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.ID() != "Deontological/medium/Jiminies" {
		t.Errorf("unexpected config ID: %s", cfg.ID())
	}
	if len(cfg.Traits) != 2 {
		t.Errorf("expected 2 traits, got %d", len(cfg.Traits))
	}
	if cfg.MaxDepth != 2 || cfg.Temperature != 0.5 {
		t.Errorf("medium level spec not applied: depth=%d temp=%v", cfg.MaxDepth, cfg.Temperature)
	}
}

func TestResolveScalarTraits(t *testing.T) {
	r, err := NewResolver(writeTestData(t), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	cfg, err := r.Resolve("Utilitarian", "low", "Neutral")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(cfg.Traits) != 1 || cfg.Traits[0] != "No dominant traits" {
		t.Errorf("scalar traits not normalized: %v", cfg.Traits)
	}
}

func TestResolveUnknownValues(t *testing.T) {
	r, err := NewResolver(writeTestData(t), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	cases := []struct{ pattern, level, species string }{
		{"Nonexistent", "low", "Neutral"},
		{"Deontological", "extreme", "Neutral"},
		{"Deontological", "low", "Martians"},
	}
	for _, c := range cases {
		_, err := r.Resolve(c.pattern, c.level, c.species)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("Resolve(%q,%q,%q): expected ConfigError, got %v", c.pattern, c.level, c.species, err)
		}
	}
}

func TestResolveAll(t *testing.T) {
	r, err := NewResolver(writeTestData(t), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	configs, err := r.ResolveAll([]string{"Deontological", "Utilitarian"}, []string{"low"}, []string{"Jiminies", "Neutral"})
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(configs) != 4 {
		t.Errorf("expected 4 configs, got %d", len(configs))
	}
}

func TestMissingDataFiles(t *testing.T) {
	if _, err := NewResolver(t.TempDir(), nil); err == nil {
		t.Error("expected error for missing data files")
	}
}
