// Package worker runs the launcher long operations one at a time.
//
// A single goroutine drains a FIFO of tasks. At most one task executes at any instant and
// tasks run in submission order, there is no priority nor deduplication. Cancellation is
// cooperative: the shared stop signal is polled by the tasks at their checkpoints.
//
// Every transition (task start, task end) is reported through the Dispatcher so the UI
// recomputes its state on its own goroutine, never on the worker one.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/storage"
)

// ErrClosed is returned when enqueuing on a worker that has exited or is shutting down.
var ErrClosed = errors.New("worker closed")

// Exec is what a running task receives from the worker.
type Exec struct {
	// Stop is the shared cooperative stop signal.
	Stop *state.StopSignal
	// Summary collects the sub-operation outcomes of the task.
	Summary *model.Summary
	Logger  log.Logger
}

// Checkpoint returns model.ErrCancelled if a stop was requested.
func (e Exec) Checkpoint() error { return e.Stop.Checkpoint() }

// Func is the body of a task.
type Func func(ctx context.Context, e Exec) error

// Task is a deferred unit of work, consumed exactly once.
type Task struct {
	// ID is set by Enqueue.
	ID   string
	Name string
	Run  Func
}

// Dispatcher delivers worker events to the UI goroutine.
type Dispatcher interface {
	Send(msg any)
}

// DispatcherFunc is a helper to use functions as Dispatcher.
type DispatcherFunc func(msg any)

func (f DispatcherFunc) Send(msg any) { f(msg) }

type noopDispatcher struct{}

func (noopDispatcher) Send(any) {}

// Config is the worker configuration.
type Config struct {
	State      *state.State
	Dispatcher Dispatcher
	// History is optional, when set every consumed task is recorded.
	History storage.TaskHistoryRepository
	// PollInterval is the dequeue timeout, the worker observes stop requests at this pace while idle.
	PollInterval time.Duration
	// RecoverBackoff is the pause after an unexpected failure of the worker own logic.
	RecoverBackoff time.Duration
	Logger         log.Logger
	// Now is used to get the current time, mainly for testing.
	Now func() time.Time
}

func (c *Config) defaults() error {
	if c.State == nil {
		return fmt.Errorf("state is required")
	}
	if c.Dispatcher == nil {
		c.Dispatcher = noopDispatcher{}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.RecoverBackoff <= 0 {
		c.RecoverBackoff = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "worker.Worker"})
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Worker is the serial task queue worker.
type Worker struct {
	state          *state.State
	dispatcher     Dispatcher
	history        storage.TaskHistoryRepository
	pollInterval   time.Duration
	recoverBackoff time.Duration
	logger         log.Logger
	now            func() time.Time

	// mu protects the queue and makes the running/stop flag updates atomic with respect
	// to Cancel.
	mu      sync.Mutex
	queue   []Task
	current *Task
	closing bool
	closed  bool
	notify  chan struct{}
}

// New returns a new worker, it doesn't process anything until Run is called.
func New(cfg Config) (*Worker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		state:          cfg.State,
		dispatcher:     cfg.Dispatcher,
		history:        cfg.History,
		pollInterval:   cfg.PollInterval,
		recoverBackoff: cfg.RecoverBackoff,
		logger:         cfg.Logger,
		now:            cfg.Now,
		notify:         make(chan struct{}, 1),
	}, nil
}

// Enqueue adds a task at the end of the queue and returns its ID. It never blocks.
// It only fails when the worker is gone, callers are free to ignore that.
func (w *Worker) Enqueue(t Task) (string, error) {
	if t.Run == nil {
		return "", fmt.Errorf("task %q has no body: %w", t.Name, model.ErrNotValid)
	}

	w.mu.Lock()
	if w.closing || w.closed {
		w.mu.Unlock()
		w.logger.Warningf("Task %q not enqueued: worker closed", t.Name)
		return "", ErrClosed
	}
	t.ID = ulid.Make().String()
	w.queue = append(w.queue, t)
	pending := len(w.queue)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}

	w.logger.Debugf("Task %q (%s) enqueued, %d pending", t.Name, t.ID, pending)
	return t.ID, nil
}

// Pending returns the number of queued tasks, not counting the running one.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Current returns the running task name.
func (w *Worker) Current() (name string, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return "", false
	}
	return w.current.Name, true
}

// Cancel asks the running task (or the next queued one) to stop. It returns false when
// there is nothing to cancel, in that case the stop signal is left untouched so an idle
// worker is never terminated by a user cancel.
func (w *Worker) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil && len(w.queue) == 0 {
		return false
	}
	w.state.Stop().Set()
	w.logger.Infof("Cancellation requested")
	return true
}

// Shutdown makes the worker exit permanently: the running task is asked to stop and the
// queued ones are dropped.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	w.closing = true
	w.state.Stop().Set()
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Run is the worker loop, it blocks until the context is cancelled or the worker is shut down.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infof("Worker started")
	defer func() {
		w.mu.Lock()
		w.closed = true
		dropped := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, t := range dropped {
			w.drop(ctx, t, "worker exited")
		}
		w.logger.Infof("Worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		t, ok := w.next(ctx)
		if !ok {
			if w.shouldExit() {
				return nil
			}
			continue
		}

		if err := w.process(ctx, t); err != nil {
			w.logger.Errorf("Worker dispatch failure on task %q (%s): %v", t.Name, t.ID, err)
			w.finish()
			w.dispatcher.Send(StateChangedMsg{})

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.recoverBackoff):
			}
		}
	}
}

// shouldExit returns true when the worker is idle with a shutdown stop request. A stop
// signal alone is not enough, the supervisor sets it too while stopping the process.
func (w *Worker) shouldExit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing && w.state.Stop().IsSet()
}

// next waits up to the poll interval for a task.
func (w *Worker) next(ctx context.Context) (Task, bool) {
	if t, ok := w.pop(); ok {
		return t, true
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Task{}, false
	case <-timer.C:
		return Task{}, false
	case <-w.notify:
		return w.pop()
	}
}

func (w *Worker) pop() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closing || len(w.queue) == 0 {
		return Task{}, false
	}
	t := w.queue[0]
	w.queue[0] = Task{}
	w.queue = w.queue[1:]
	return t, true
}

// process executes a single dequeued task. The returned error is a failure of the worker
// own logic, task failures are handled inside.
func (w *Worker) process(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if w.state.Stop().IsSet() {
		w.drop(ctx, t, "stop requested while queued")
		w.finish()
		return nil
	}

	w.mu.Lock()
	w.current = &t
	w.state.SetTaskRunning(true)
	w.mu.Unlock()
	w.dispatcher.Send(StateChangedMsg{})
	w.dispatcher.Send(TaskStartedMsg{ID: t.ID, Name: t.Name})

	logger := w.logger.WithValues(log.Kv{"task": t.Name, "task-id": t.ID})
	logger.Infof("Task started")

	summary := &model.Summary{}
	rec := model.TaskRecord{ID: t.ID, Name: t.Name, StartedAt: w.now().UTC()}
	taskErr := runTask(ctx, t, Exec{Stop: w.state.Stop(), Summary: summary, Logger: logger})
	rec.FinishedAt = w.now().UTC()
	rec.Summary = summary.String()

	switch {
	case taskErr == nil:
		rec.Status = model.TaskStatusDone
		logger.Infof("Task finished in %s", rec.Duration())
	case errors.Is(taskErr, model.ErrCancelled):
		rec.Status = model.TaskStatusCancelled
		rec.Error = taskErr.Error()
		logger.Warningf("Task cancelled: %v", taskErr)
	default:
		rec.Status = model.TaskStatusFailed
		rec.Error = taskErr.Error()
		logger.Errorf("Task failed: %v", taskErr)
	}

	w.finish()
	w.record(ctx, rec)
	w.dispatcher.Send(TaskFinishedMsg{Record: rec, Err: taskErr})
	w.dispatcher.Send(StateChangedMsg{})

	return nil
}

// runTask executes the task body converting panics into task failures.
func runTask(ctx context.Context, t Task, e Exec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Debugf("Task panic stack: %s", debug.Stack())
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Run(ctx, e)
}

// finish clears the running task and, unless shutting down, the stop signal so the next
// task starts clean.
func (w *Worker) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = nil
	w.state.SetTaskRunning(false)
	if !w.closing {
		w.state.Stop().Clear()
	}
}

func (w *Worker) drop(ctx context.Context, t Task, reason string) {
	now := w.now().UTC()
	rec := model.TaskRecord{
		ID:         t.ID,
		Name:       t.Name,
		Status:     model.TaskStatusDropped,
		Error:      reason,
		StartedAt:  now,
		FinishedAt: now,
	}
	w.logger.WithValues(log.Kv{"task": t.Name, "task-id": t.ID}).Warningf("Task cancelled before start: %s", reason)
	w.record(ctx, rec)
	w.dispatcher.Send(TaskFinishedMsg{Record: rec, Err: fmt.Errorf("%s: %w", reason, model.ErrCancelled)})
}

func (w *Worker) record(ctx context.Context, rec model.TaskRecord) {
	if w.history == nil {
		return
	}
	// The run context may be already cancelled at shutdown, history is still wanted.
	ctx = context.WithoutCancel(ctx)
	if err := w.history.RecordTask(ctx, rec); err != nil {
		w.logger.Errorf("Could not record task %s history: %v", rec.ID, err)
	}
}
