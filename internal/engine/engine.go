// Package engine is the run controller: it owns run lifecycles, fans tasks
// out to the scheduler and folds terminal results back into run manifests.
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ethicsengine/internal/models"
	"ethicsengine/internal/scheduler"
	"ethicsengine/internal/store"
	"github.com/google/uuid"
)

var (
	ErrUnknownRun = errors.New("unknown run")
	ErrNoWork     = errors.New("run needs at least one item and one configuration")
)

type runState struct {
	manifest  models.RunManifest
	cancelled bool
}

// Engine coordinates runs across the scheduler and the store. One Engine
// serves all runs of a process; runs are independent of each other.
type Engine struct {
	sched *scheduler.Scheduler
	store *store.Store

	mu   sync.Mutex
	runs map[string]*runState
}

// New creates an engine dispatching tasks to exec and persisting results to
// st. Call Start before submitting runs and Stop on shutdown.
func New(exec scheduler.Executor, st *store.Store, cfg *scheduler.Config) *Engine {
	e := &Engine{
		store: st,
		runs:  make(map[string]*runState),
	}
	e.sched = scheduler.New(exec, e.onTerminal, cfg)
	return e
}

// Start begins task dispatch.
func (e *Engine) Start() { e.sched.Start() }

// Stop halts dispatch and waits for in-flight tasks.
func (e *Engine) Stop() { e.sched.Stop() }

// StartRun builds the item x config task matrix for a new run, registers its
// manifest and enqueues all tasks. Returns the new run ID.
func (e *Engine) StartRun(items []models.WorkItem, configs []models.AgentConfig) (string, error) {
	if len(items) == 0 || len(configs) == 0 {
		return "", ErrNoWork
	}

	runID := uuid.New().String()
	now := time.Now().UTC()

	tasks := make([]*models.Task, 0, len(items)*len(configs))
	for _, item := range items {
		for _, cfg := range configs {
			tasks = append(tasks, &models.Task{
				ID:        uuid.New().String(),
				RunID:     runID,
				Item:      item,
				Config:    cfg,
				Phase:     models.PhasePending,
				CreatedAt: now,
			})
		}
	}

	manifest := models.RunManifest{
		RunID:     runID,
		Status:    models.RunQueued,
		Items:     len(items),
		Configs:   len(configs),
		Counts:    models.Counts{Total: len(tasks), Pending: len(tasks)},
		CreatedAt: now,
	}

	if err := e.store.SaveManifest(&manifest); err != nil {
		return "", fmt.Errorf("persist manifest: %w", err)
	}

	state := &runState{manifest: manifest}
	e.mu.Lock()
	e.runs[runID] = state
	e.mu.Unlock()

	log.Printf("Run %s: %d items x %d configs = %d tasks", runID, len(items), len(configs), len(tasks))
	e.sched.Enqueue(runID, tasks)

	// Queued -> running once the scheduler has the tasks. A very fast run may
	// already be terminal here, in which case the final status wins.
	e.mu.Lock()
	if !state.manifest.Status.Terminal() {
		state.manifest.Status = models.RunRunning
		if err := e.store.SaveManifest(&state.manifest); err != nil {
			log.Printf("Run %s: failed to persist running status: %v", runID, err)
		}
	}
	e.mu.Unlock()

	return runID, nil
}

// Status returns a point-in-time manifest for the run. The pending and
// running counts are reconciled against the scheduler's live queue view.
func (e *Engine) Status(runID string) (*models.RunManifest, error) {
	e.mu.Lock()
	state, ok := e.runs[runID]
	if !ok {
		e.mu.Unlock()
		// Fall back to the store for runs from earlier processes.
		m, err := e.store.GetManifest(runID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, ErrUnknownRun
		}
		return m, nil
	}
	m := state.manifest
	e.mu.Unlock()

	if !m.Status.Terminal() {
		snap := e.sched.Status()
		m.Counts.Pending = snap.PendingByRun[runID]
		m.Counts.Running = m.Counts.Total - m.Counts.Succeeded - m.Counts.Failed - m.Counts.Pending
	}
	return &m, nil
}

// ListRuns returns manifests for every run the store knows about, with live
// counts substituted for runs still in progress.
func (e *Engine) ListRuns() ([]models.RunManifest, error) {
	manifests, err := e.store.ListManifests()
	if err != nil {
		return nil, err
	}
	for i := range manifests {
		if manifests[i].Status.Terminal() {
			continue
		}
		if live, err := e.Status(manifests[i].RunID); err == nil {
			manifests[i] = *live
		}
	}
	return manifests, nil
}

// Cancel stops a run: pending tasks fail immediately with the cancelled
// error kind, in-flight tasks finish but their results are discarded.
// Cancelling a terminal or unknown run is a no-op.
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	state, ok := e.runs[runID]
	if !ok || state.manifest.Status.Terminal() {
		e.mu.Unlock()
		return nil
	}
	state.cancelled = true
	e.mu.Unlock()

	// The scheduler reports each drained task through onTerminal, which
	// finalizes the manifest once all tasks are accounted for.
	e.sched.Cancel(runID)
	return nil
}

// onTerminal is the scheduler's exactly-once callback per finished task. It
// persists the record, updates counts and finalizes the run when the last
// task lands.
func (e *Engine) onTerminal(task *models.Task, rec *models.ResultRecord) {
	if err := e.store.UpsertResult(rec); err != nil {
		log.Printf("Run %s: failed to persist result for task %s: %v", rec.RunID, rec.TaskID, err)
	}

	e.mu.Lock()
	state, ok := e.runs[rec.RunID]
	if !ok {
		e.mu.Unlock()
		return
	}
	if rec.Success {
		state.manifest.Counts.Succeeded++
	} else {
		state.manifest.Counts.Failed++
	}

	done := state.manifest.Counts.Succeeded+state.manifest.Counts.Failed >= state.manifest.Counts.Total
	var final *models.RunManifest
	if done {
		state.manifest.Counts.Pending = 0
		state.manifest.Counts.Running = 0
		state.manifest.Status = finalStatus(state)
		state.manifest.FinishedAt = time.Now().UTC()
		m := state.manifest
		final = &m
	}
	e.mu.Unlock()

	if final != nil {
		if err := e.store.SaveManifest(final); err != nil {
			log.Printf("Run %s: failed to persist final manifest: %v", final.RunID, err)
		}
		log.Printf("Run %s finished: %s (%d succeeded, %d failed)",
			final.RunID, final.Status, final.Counts.Succeeded, final.Counts.Failed)
	}
}

func finalStatus(state *runState) models.RunStatus {
	switch {
	case state.cancelled:
		return models.RunCancelled
	case state.manifest.Counts.Failed > 0:
		return models.RunCompletedWithErrors
	default:
		return models.RunCompleted
	}
}
