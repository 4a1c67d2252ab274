package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ethicsengine/internal/models"
)

// stubExecutor completes every task successfully after an optional delay,
// tracking dispatch order and overlap.
type stubExecutor struct {
	mu         sync.Mutex
	delay      time.Duration
	gate       chan struct{} // when non-nil, Execute blocks until closed
	started    []string
	active     int
	maxActive  int
	overlapped []string // task IDs seen with an already-active window
	activeIDs  map[string]bool
}

func newStubExecutor(delay time.Duration) *stubExecutor {
	return &stubExecutor{delay: delay, activeIDs: make(map[string]bool)}
}

func (e *stubExecutor) Execute(ctx context.Context, task *models.Task) *models.ResultRecord {
	e.mu.Lock()
	e.started = append(e.started, task.ID)
	if e.activeIDs[task.ID] {
		e.overlapped = append(e.overlapped, task.ID)
	}
	e.activeIDs[task.ID] = true
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	gate := e.gate
	e.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.active--
	delete(e.activeIDs, task.ID)
	e.mu.Unlock()

	task.Phase = models.PhaseDone
	now := time.Now().UTC()
	return &models.ResultRecord{
		TaskID:     task.ID,
		RunID:      task.RunID,
		ItemID:     task.Item.ID,
		ConfigID:   task.Config.ID(),
		Outcome:    "ok",
		Success:    true,
		StartedAt:  now,
		FinishedAt: now,
	}
}

// collector gathers terminal callbacks.
type collector struct {
	mu      sync.Mutex
	records []*models.ResultRecord
	tasks   []*models.Task
}

func (c *collector) terminal(task *models.Task, rec *models.ResultRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	c.records = append(c.records, rec)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func makeTasks(runID string, n int) []*models.Task {
	tasks := make([]*models.Task, n)
	for i := range tasks {
		tasks[i] = &models.Task{
			ID:        fmt.Sprintf("%s-task-%d", runID, i),
			RunID:     runID,
			Item:      models.WorkItem{ID: fmt.Sprintf("item-%d", i), Kind: models.ItemScenario},
			Phase:     models.PhasePending,
			CreatedAt: time.Now().UTC(),
		}
	}
	return tasks
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", msg)
		case <-ticker.C:
			if cond() {
				return
			}
		}
	}
}

func TestSingleSlotPreservesSubmissionOrder(t *testing.T) {
	exec := newStubExecutor(0)
	col := &collector{}
	sch := New(exec, col.terminal, &Config{MaxConcurrent: 1})
	sch.Start()
	defer sch.Stop()

	tasks := makeTasks("run1", 4)
	sch.Enqueue("run1", tasks)

	waitFor(t, func() bool { return col.count() == 4 }, "all tasks terminal")

	exec.mu.Lock()
	defer exec.mu.Unlock()
	for i, id := range exec.started {
		if id != tasks[i].ID {
			t.Errorf("dispatch order[%d] = %s, want %s", i, id, tasks[i].ID)
		}
	}
	if exec.maxActive > 1 {
		t.Errorf("observed %d concurrent tasks with ceiling 1", exec.maxActive)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	exec := newStubExecutor(20 * time.Millisecond)
	col := &collector{}
	sch := New(exec, col.terminal, &Config{MaxConcurrent: 3})
	sch.Start()
	defer sch.Stop()

	sch.Enqueue("run1", makeTasks("run1", 12))

	waitFor(t, func() bool { return col.count() == 12 }, "all tasks terminal")

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if exec.maxActive > 3 {
		t.Errorf("observed %d concurrent tasks, ceiling is 3", exec.maxActive)
	}
	if len(exec.overlapped) > 0 {
		t.Errorf("tasks dispatched twice concurrently: %v", exec.overlapped)
	}
}

func TestRoundRobinAcrossRuns(t *testing.T) {
	exec := newStubExecutor(0)
	col := &collector{}
	sch := New(exec, col.terminal, &Config{MaxConcurrent: 1})

	bigRun := makeTasks("big", 6)
	smallRun := makeTasks("small", 2)

	// Enqueue before starting so both runs are queued when dispatch begins.
	sch.Enqueue("big", bigRun)
	sch.Enqueue("small", smallRun)
	sch.Start()
	defer sch.Stop()

	waitFor(t, func() bool { return col.count() == 8 }, "all tasks terminal")

	// The small run's tasks must not all come last: fairness means its
	// second task is dispatched within the first four slots.
	exec.mu.Lock()
	defer exec.mu.Unlock()
	smallSeen := 0
	for i, id := range exec.started {
		if id == smallRun[0].ID || id == smallRun[1].ID {
			smallSeen++
		}
		if i == 3 && smallSeen < 2 {
			t.Errorf("small run starved: only %d of its tasks in first 4 dispatches (%v)", smallSeen, exec.started[:4])
		}
	}
}

func TestCancelPendingAndInFlight(t *testing.T) {
	exec := newStubExecutor(0)
	exec.gate = make(chan struct{})
	col := &collector{}
	sch := New(exec, col.terminal, &Config{MaxConcurrent: 2})
	sch.Start()
	defer sch.Stop()

	tasks := makeTasks("run1", 6)
	sch.Enqueue("run1", tasks)

	// Wait until two tasks occupy the slots.
	waitFor(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		return exec.active == 2
	}, "two tasks in flight")

	sch.Cancel("run1")

	// Pending tasks are terminal immediately, before the in-flight ones finish.
	waitFor(t, func() bool { return col.count() >= 4 }, "pending tasks cancelled")

	close(exec.gate)
	waitFor(t, func() bool { return col.count() == 6 }, "all tasks terminal")

	col.mu.Lock()
	defer col.mu.Unlock()
	for _, rec := range col.records {
		if rec.Success {
			t.Errorf("task %s recorded success for a cancelled run", rec.TaskID)
		}
		if rec.ErrorKind != models.ErrKindCancelled {
			t.Errorf("task %s error kind = %s, want cancelled", rec.TaskID, rec.ErrorKind)
		}
	}
	for _, task := range col.tasks {
		if task.Phase != models.PhaseFailed {
			t.Errorf("task %s phase = %s, want failed", task.ID, task.Phase)
		}
	}
}

func TestEnqueueAfterCancel(t *testing.T) {
	exec := newStubExecutor(0)
	col := &collector{}
	sch := New(exec, col.terminal, DefaultConfig())
	sch.Start()
	defer sch.Stop()

	sch.Cancel("run1")
	sch.Enqueue("run1", makeTasks("run1", 3))

	waitFor(t, func() bool { return col.count() == 3 }, "tasks rejected")

	exec.mu.Lock()
	started := len(exec.started)
	exec.mu.Unlock()
	if started != 0 {
		t.Errorf("cancelled run dispatched %d tasks", started)
	}
}

func TestStatusSnapshot(t *testing.T) {
	exec := newStubExecutor(0)
	exec.gate = make(chan struct{})
	col := &collector{}
	sch := New(exec, col.terminal, &Config{MaxConcurrent: 1})
	sch.Start()
	defer sch.Stop()

	sch.Enqueue("run1", makeTasks("run1", 3))

	waitFor(t, func() bool { return sch.Status().InFlight == 1 }, "one task in flight")

	snap := sch.Status()
	if snap.Capacity != 1 {
		t.Errorf("capacity = %d, want 1", snap.Capacity)
	}
	if snap.PendingByRun["run1"] > 2 {
		t.Errorf("pending = %d, want at most 2", snap.PendingByRun["run1"])
	}

	close(exec.gate)
	waitFor(t, func() bool { return col.count() == 3 }, "all tasks terminal")
}
