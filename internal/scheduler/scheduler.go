package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"ethicsengine/internal/models"
)

// Executor runs one task through both pipeline phases and returns its
// terminal result record. Implementations own all phase transitions up to
// done/failed and must not retry beyond their configured bound.
type Executor interface {
	Execute(ctx context.Context, task *models.Task) *models.ResultRecord
}

// TerminalFunc is invoked exactly once per task when it reaches a terminal
// phase, including immediate cancellations.
type TerminalFunc func(task *models.Task, rec *models.ResultRecord)

// Snapshot is a read-only view of queue state, safe to poll frequently.
type Snapshot struct {
	PendingByRun map[string]int `json:"pending_by_run"`
	InFlight     int            `json:"in_flight"`
	Capacity     int            `json:"capacity"`
}

// Scheduler holds pending tasks per run and dispatches them to a bounded
// slot pool. Dispatch is FIFO within a run and round-robin across runs so a
// large run cannot starve a small one.
type Scheduler struct {
	exec       Executor
	onTerminal TerminalFunc

	mu        sync.Mutex
	queues    map[string][]*models.Task
	order     []string // runs with pending work, round-robin position below
	rrIndex   int
	cancelled map[string]bool
	inFlight  map[string]bool // task IDs with an active worker

	slots chan struct{}
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler dispatching to exec, reporting terminal tasks to
// onTerminal.
func New(exec Executor, onTerminal TerminalFunc, cfg *Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		exec:       exec,
		onTerminal: onTerminal,
		queues:     make(map[string][]*models.Task),
		cancelled:  make(map[string]bool),
		inFlight:   make(map[string]bool),
		slots:      make(chan struct{}, cfg.maxConcurrent()),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the dispatch loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the dispatch loop and waits for in-flight workers to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Enqueue adds tasks for a run in submission order. Tasks enqueued for an
// already-cancelled run are immediately marked failed/cancelled.
func (s *Scheduler) Enqueue(runID string, tasks []*models.Task) {
	var rejected []*models.Task

	s.mu.Lock()
	if s.cancelled[runID] {
		rejected = tasks
	} else {
		if _, ok := s.queues[runID]; !ok {
			s.order = append(s.order, runID)
		}
		s.queues[runID] = append(s.queues[runID], tasks...)
	}
	s.mu.Unlock()

	for _, t := range rejected {
		t.Phase = models.PhaseFailed
		s.onTerminal(t, cancelRecord(t))
	}
	s.signal()
}

// Cancel marks all pending tasks of a run as failed/cancelled and prevents
// further dispatch for that run. In-flight tasks run to completion; their
// results are discarded when they report back.
func (s *Scheduler) Cancel(runID string) {
	s.mu.Lock()
	s.cancelled[runID] = true
	drained := s.queues[runID]
	delete(s.queues, runID)
	s.removeFromOrder(runID)
	s.mu.Unlock()

	if len(drained) > 0 {
		log.Printf("Cancelled run %s: discarding %d pending tasks", runID, len(drained))
	}
	for _, t := range drained {
		t.Phase = models.PhaseFailed
		s.onTerminal(t, cancelRecord(t))
	}
}

// Status returns a point-in-time view of queue state.
func (s *Scheduler) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make(map[string]int, len(s.queues))
	for runID, q := range s.queues {
		pending[runID] = len(q)
	}
	return Snapshot{
		PendingByRun: pending,
		InFlight:     len(s.inFlight),
		Capacity:     cap(s.slots),
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		for {
			// Take a slot before popping so no task sits outside its queue
			// while waiting for capacity; a cancel drains all of them. The
			// single loop goroutine pops sequentially, which keeps dispatch
			// in submission order.
			select {
			case <-s.ctx.Done():
				return
			case s.slots <- struct{}{}:
			}

			task := s.next()
			if task == nil {
				<-s.slots
				break
			}

			s.mu.Lock()
			if s.cancelled[task.RunID] {
				s.mu.Unlock()
				<-s.slots
				task.Phase = models.PhaseFailed
				s.onTerminal(task, cancelRecord(task))
				continue
			}
			s.inFlight[task.ID] = true
			s.mu.Unlock()

			s.wg.Add(1)
			go s.runTask(task)
		}
	}
}

// next pops the head of the next run queue in round-robin order.
func (s *Scheduler) next() *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return nil
	}
	s.rrIndex %= len(s.order)
	runID := s.order[s.rrIndex]

	q := s.queues[runID]
	task := q[0]
	if len(q) == 1 {
		delete(s.queues, runID)
		s.removeFromOrder(runID)
	} else {
		s.queues[runID] = q[1:]
		s.rrIndex++
	}
	return task
}

// removeFromOrder drops a run from the round-robin order, keeping rrIndex
// pointed at the next run. Callers hold s.mu.
func (s *Scheduler) removeFromOrder(runID string) {
	for i, id := range s.order {
		if id == runID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			if i < s.rrIndex {
				s.rrIndex--
			}
			return
		}
	}
}

func (s *Scheduler) runTask(task *models.Task) {
	defer s.wg.Done()

	rec := s.exec.Execute(s.ctx, task)

	s.mu.Lock()
	delete(s.inFlight, task.ID)
	discarded := s.cancelled[task.RunID]
	s.mu.Unlock()

	if discarded {
		// Late result from a cancelled run: the cancellation overrides any
		// outcome, including a success.
		task.Phase = models.PhaseFailed
		rec = cancelRecord(task)
	}

	<-s.slots
	s.signal()
	s.onTerminal(task, rec)
}

func cancelRecord(task *models.Task) *models.ResultRecord {
	now := time.Now().UTC()
	return &models.ResultRecord{
		TaskID:     task.ID,
		RunID:      task.RunID,
		ItemID:     task.Item.ID,
		ConfigID:   task.Config.ID(),
		Success:    false,
		ErrorKind:  models.ErrKindCancelled,
		Attempts:   task.AttemptCount,
		StartedAt:  task.CreatedAt,
		FinishedAt: now,
	}
}
