// Package data loads scenario and benchmark work items from external JSON files.
package data

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"ethicsengine/internal/models"
)

// scenarioEntry mirrors one element of the scenarios file (a JSON list).
type scenarioEntry struct {
	ID     string   `json:"id"`
	Prompt string   `json:"prompt"`
	Tags   []string `json:"tags,omitempty"`
}

// benchmarkFile mirrors the benchmark file layout: items live under "eval_data".
type benchmarkFile struct {
	EvalData []benchmarkEntry `json:"eval_data"`
}

type benchmarkEntry struct {
	QuestionID string `json:"question_id"`
	Prompt     string `json:"prompt"`
	Answer     string `json:"answer"`
}

// LoadScenarios reads scenario work items from a JSON list file. Entries
// missing an id or prompt are skipped with a warning rather than failing
// the whole load.
func LoadScenarios(path string) ([]models.WorkItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}

	var entries []scenarioEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse scenarios %s: %w", path, err)
	}

	var items []models.WorkItem
	for i, e := range entries {
		if e.ID == "" || e.Prompt == "" {
			log.Printf("Skipping invalid scenario at index %d in %s (missing id or prompt)", i, path)
			continue
		}
		items = append(items, models.WorkItem{
			ID:     e.ID,
			Prompt: e.Prompt,
			Kind:   models.ItemScenario,
			Tags:   e.Tags,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no valid scenarios in %s", path)
	}
	return items, nil
}

// LoadBenchmarks reads benchmark work items from a JSON file with a top-level
// "eval_data" list.
func LoadBenchmarks(path string) ([]models.WorkItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmarks: %w", err)
	}

	var file benchmarkFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse benchmarks %s: %w", path, err)
	}
	if file.EvalData == nil {
		return nil, fmt.Errorf("key 'eval_data' not found or not a list in %s", path)
	}

	var items []models.WorkItem
	for i, e := range file.EvalData {
		if e.QuestionID == "" || e.Prompt == "" {
			log.Printf("Skipping invalid benchmark at index %d in %s (missing question_id or prompt)", i, path)
			continue
		}
		items = append(items, models.WorkItem{
			ID:             e.QuestionID,
			Prompt:         e.Prompt,
			Kind:           models.ItemBenchmark,
			ExpectedAnswer: e.Answer,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no valid benchmarks in %s", path)
	}
	return items, nil
}
