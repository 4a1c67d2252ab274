// Package models defines the core domain types for the EthicsEngine run coordinator.
package models

import "time"

// TaskPhase represents the pipeline phase of a task. Phases only move
// forward (pending -> reasoning -> simulating -> done) or to failed.
type TaskPhase string

const (
	PhasePending    TaskPhase = "pending"
	PhaseReasoning  TaskPhase = "reasoning"
	PhaseSimulating TaskPhase = "simulating"
	PhaseDone       TaskPhase = "done"
	PhaseFailed     TaskPhase = "failed"
)

// Terminal reports whether the phase is final.
func (p TaskPhase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// ErrorKind classifies why a task failed.
type ErrorKind string

const (
	ErrKindNone      ErrorKind = ""
	ErrKindCancelled ErrorKind = "cancelled"
	ErrKindBackend   ErrorKind = "backend_unavailable"
	ErrKindInvalid   ErrorKind = "invalid_request"
	ErrKindConfig    ErrorKind = "config"
)

// ItemKind distinguishes open-ended scenarios from graded benchmark questions.
type ItemKind string

const (
	ItemScenario  ItemKind = "scenario"
	ItemBenchmark ItemKind = "benchmark"
)

// WorkItem is one scenario prompt or benchmark question. Items are loaded
// from data files at run start and are read-only to the engine.
type WorkItem struct {
	ID             string   `json:"id"`
	Prompt         string   `json:"prompt"`
	Kind           ItemKind `json:"kind"`
	ExpectedAnswer string   `json:"expected_answer,omitempty"` // benchmark only
	Tags           []string `json:"tags,omitempty"`
}

// AgentConfig is the resolved tuple of reasoning pattern, reasoning level and
// species profile that drives one reasoning call. Immutable once resolved.
type AgentConfig struct {
	Pattern        string   `json:"pattern"`         // golden pattern name, e.g. "Deontological"
	ReasoningLevel string   `json:"reasoning_level"` // low | medium | high
	Species        string   `json:"species"`
	Traits         []string `json:"traits"`       // resolved species traits
	PatternText    string   `json:"pattern_text"` // resolved pattern description
	MaxDepth       int      `json:"max_depth"`
	MaxTokens      int      `json:"max_tokens"`
	Temperature    float64  `json:"temperature"`
}

// ID returns the identifying tuple of the configuration.
func (c AgentConfig) ID() string {
	return c.Pattern + "/" + c.ReasoningLevel + "/" + c.Species
}

// Task is the unit of scheduling: one work item under one agent
// configuration, for one run. Owned by the scheduler until terminal.
type Task struct {
	ID           string      `json:"id"`
	RunID        string      `json:"run_id"`
	Item         WorkItem    `json:"item"`
	Config       AgentConfig `json:"config"`
	Phase        TaskPhase   `json:"phase"`
	AttemptCount int         `json:"attempt_count"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ReasoningArtifact is the output of phase 1. Immutable after creation.
type ReasoningArtifact struct {
	TaskID    string `json:"task_id"`
	RawOutput string `json:"raw_output"`
	Trace     string `json:"trace,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// ResultRecord is the persisted outcome of a fully processed task.
type ResultRecord struct {
	TaskID     string    `json:"task_id"`
	RunID      string    `json:"run_id"`
	ItemID     string    `json:"item_id"`
	ConfigID   string    `json:"config_id"`
	Outcome    string    `json:"outcome"` // judgment or simulated outcome text
	Success    bool      `json:"success"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Reasoning  string    `json:"reasoning,omitempty"` // phase 1 raw output
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunStatus is the lifecycle state of a run manifest.
type RunStatus string

const (
	RunQueued              RunStatus = "queued"
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunCancelled           RunStatus = "cancelled"
)

// Terminal reports whether the run status is final.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunCompletedWithErrors || s == RunCancelled
}

// Counts is the phase histogram of a run's tasks.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"` // reasoning + simulating
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunManifest is the aggregate status object for one batch of tasks.
type RunManifest struct {
	RunID      string    `json:"run_id"`
	Status     RunStatus `json:"status"`
	Items      int       `json:"items"`
	Configs    int       `json:"configs"`
	Counts     Counts    `json:"counts"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}
