package task

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
)

// Pending is a submitted task waiting in the queue.
type Pending struct {
	ID      model.TaskID
	Command string
}

// Set is a lock protected set of task records indexed by ID.
type Set struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]model.Task
}

func newSet() *Set {
	return &Set{tasks: make(map[model.TaskID]model.Task)}
}

// Get returns the task with the ID.
func (s *Set) Get(id model.TaskID) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	return t, ok
}

// Len returns the number of tasks in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tasks)
}

// Snapshot returns the tasks of the set ordered by ID.
func (s *Set) Snapshot() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot()
}

// View calls fn holding the set read lock. fn must not modify the map nor keep
// a reference to it after returning.
func (s *Set) View(fn func(tasks map[model.TaskID]model.Task)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.tasks)
}

func (s *Set) snapshot() []model.Task {
	tasks := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks
}

// Snapshot is a consistent point in time view of every task of the store.
type Snapshot struct {
	Queued   []model.Task
	Running  []model.Task
	Finished []model.Task
	Failed   []model.Task
}

// StoreConfig is the configuration for the task store.
type StoreConfig struct {
	// RunID identifies this store instance on archived tasks, a new ULID by default.
	RunID  string
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.RunID == "" {
		c.RunID = ulid.Make().String()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Store", "run-id": c.RunID})
	return nil
}

// Store holds the pending queue, the running-set, the finished-set and the
// failed-set. Each container has its own lock. Operations that span containers
// take the locks always in the same order (queue, running, finished, failed) so a
// task moving between containers is never seen by Snapshot in two or none of them.
type Store struct {
	runID  string
	lastID atomic.Uint64

	queueMu sync.Mutex
	queue   []Pending

	running  *Set
	finished *Set
	failed   *Set

	wake   chan struct{}
	logger log.Logger
}

// NewStore creates a new empty store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		runID:    cfg.RunID,
		running:  newSet(),
		finished: newSet(),
		failed:   newSet(),
		wake:     make(chan struct{}, 1),
		logger:   cfg.Logger,
	}, nil
}

// RunID returns the ID of the store run.
func (s *Store) RunID() string { return s.runID }

// NextID allocates a new task ID, IDs start at 1 and are never reused.
func (s *Store) NextID() model.TaskID {
	return model.TaskID(s.lastID.Add(1))
}

// Submit allocates the next ID and enqueues the command. It never blocks.
func (s *Store) Submit(command string) model.TaskID {
	id := s.NextID()
	s.Enqueue(id, command)
	return id
}

// Enqueue appends a task to the tail of the pending queue. There is no
// deduplication and no capacity bound.
func (s *Store) Enqueue(id model.TaskID, command string) {
	s.queueMu.Lock()
	s.queue = append(s.queue, Pending{ID: id, Command: command})
	s.queueMu.Unlock()

	s.logger.Debugf("Task %d enqueued", id)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the head of the pending queue, false if the queue is empty.
func (s *Store) Dequeue() (Pending, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	return s.pop()
}

// Claim dequeues the head of the pending queue and inserts it in the running-set
// with the start time stamped. Returns false if the queue is empty.
func (s *Store) Claim() (model.Task, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	p, ok := s.pop()
	if !ok {
		return model.Task{}, false
	}

	t := model.Task{
		ID:        p.ID,
		RunID:     s.runID,
		Command:   p.Command,
		Status:    model.TaskStatusRunning,
		StartedAt: time.Now(),
	}

	s.running.mu.Lock()
	s.running.tasks[t.ID] = t
	s.running.mu.Unlock()

	return t, true
}

func (s *Store) pop() (Pending, bool) {
	if len(s.queue) == 0 {
		return Pending{}, false
	}

	p := s.queue[0]
	s.queue[0] = Pending{}
	s.queue = s.queue[1:]
	if len(s.queue) == 0 {
		s.queue = nil
	}

	return p, true
}

// Finish moves a running task to the finished-set with the captured output.
// The task is inserted in the finished-set before being removed from the
// running-set, both under lock.
func (s *Store) Finish(id model.TaskID, out model.Output) (model.Task, error) {
	return s.complete(id, s.finished, func(t *model.Task) {
		t.Status = model.TaskStatusFinished
		t.Output = &out
	})
}

// Fail moves a running task to the failed-set with the spawn error.
func (s *Store) Fail(id model.TaskID, cause error) (model.Task, error) {
	return s.complete(id, s.failed, func(t *model.Task) {
		t.Status = model.TaskStatusFailed
		t.Error = cause.Error()
	})
}

func (s *Store) complete(id model.TaskID, dst *Set, update func(t *model.Task)) (model.Task, error) {
	s.running.mu.Lock()
	defer s.running.mu.Unlock()

	t, ok := s.running.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("running task %d: %w", id, model.ErrNotFound)
	}

	now := time.Now()
	if now.Before(t.StartedAt) {
		now = t.StartedAt
	}
	t.FinishedAt = &now
	update(&t)

	dst.mu.Lock()
	dst.tasks[id] = t
	dst.mu.Unlock()

	delete(s.running.tasks, id)

	return t, nil
}

// Drop removes a task from the running-set without recording it anywhere.
func (s *Store) Drop(id model.TaskID) bool {
	s.running.mu.Lock()
	defer s.running.mu.Unlock()

	_, ok := s.running.tasks[id]
	delete(s.running.tasks, id)

	return ok
}

// Running returns the running-set.
func (s *Store) Running() *Set { return s.running }

// Finished returns the finished-set.
func (s *Store) Finished() *Set { return s.finished }

// Failed returns the failed-set.
func (s *Store) Failed() *Set { return s.failed }

// Pending returns the queued tasks in queue order.
func (s *Store) Pending() []model.Task {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	return s.pending()
}

func (s *Store) pending() []model.Task {
	tasks := make([]model.Task, 0, len(s.queue))
	for _, p := range s.queue {
		tasks = append(tasks, model.Task{
			ID:      p.ID,
			RunID:   s.runID,
			Command: p.Command,
			Status:  model.TaskStatusQueued,
		})
	}

	return tasks
}

// Snapshot returns a consistent view of every container, taken while holding
// all the locks.
func (s *Store) Snapshot() Snapshot {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.running.mu.RLock()
	defer s.running.mu.RUnlock()
	s.finished.mu.RLock()
	defer s.finished.mu.RUnlock()
	s.failed.mu.RLock()
	defer s.failed.mu.RUnlock()

	return Snapshot{
		Queued:   s.pending(),
		Running:  s.running.snapshot(),
		Finished: s.finished.snapshot(),
		Failed:   s.failed.snapshot(),
	}
}

// Get looks for a task in every container.
func (s *Store) Get(id model.TaskID) (model.Task, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.running.mu.RLock()
	defer s.running.mu.RUnlock()
	s.finished.mu.RLock()
	defer s.finished.mu.RUnlock()
	s.failed.mu.RLock()
	defer s.failed.mu.RUnlock()

	for _, t := range s.pending() {
		if t.ID == id {
			return t, nil
		}
	}
	for _, set := range []*Set{s.running, s.finished, s.failed} {
		if t, ok := set.tasks[id]; ok {
			return t, nil
		}
	}

	return model.Task{}, fmt.Errorf("task %d: %w", id, model.ErrNotFound)
}

// Idle returns true when there are no queued nor running tasks.
func (s *Store) Idle() bool {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.running.mu.RLock()
	defer s.running.mu.RUnlock()

	return len(s.queue) == 0 && len(s.running.tasks) == 0
}

// Wait returns a channel that receives when a task is enqueued. Multiple
// enqueues may be coalesced into a single notification.
func (s *Store) Wait() <-chan struct{} { return s.wake }
