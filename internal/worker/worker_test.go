package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/storage/memory"
	"github.com/slok/comfylaunch/internal/storage/storagemock"
	"github.com/slok/comfylaunch/internal/worker"
)

// recorder is a dispatcher that stores every received message.
type recorder struct {
	mu       sync.Mutex
	msgs     []any
	finished chan worker.TaskFinishedMsg
}

func newRecorder() *recorder {
	return &recorder{finished: make(chan worker.TaskFinishedMsg, 100)}
}

func (r *recorder) Send(msg any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	if m, ok := msg.(worker.TaskFinishedMsg); ok {
		r.finished <- m
	}
}

func (r *recorder) waitFinished(t *testing.T, n int) []worker.TaskFinishedMsg {
	t.Helper()
	var got []worker.TaskFinishedMsg
	for i := 0; i < n; i++ {
		select {
		case m := <-r.finished:
			got = append(got, m)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for finished tasks, got %d of %d", len(got), n)
		}
	}
	return got
}

// kinds returns the message sequence as short names.
func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ks []string
	for _, m := range r.msgs {
		switch m := m.(type) {
		case worker.StateChangedMsg:
			ks = append(ks, "state")
		case worker.TaskStartedMsg:
			ks = append(ks, "start:"+m.Name)
		case worker.TaskFinishedMsg:
			ks = append(ks, string(m.Record.Status)+":"+m.Record.Name)
		}
	}
	return ks
}

func newWorker(t *testing.T, st *state.State, d worker.Dispatcher) *worker.Worker {
	t.Helper()
	w, err := worker.New(worker.Config{
		State:          st,
		Dispatcher:     d,
		PollInterval:   10 * time.Millisecond,
		RecoverBackoff: 10 * time.Millisecond,
		Logger:         log.Noop,
	})
	require.NoError(t, err)
	return w
}

// runWorker runs the worker loop in background and returns a function that shuts it
// down and waits for the loop to exit.
func runWorker(t *testing.T, w *worker.Worker) func() {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(context.Background())
	}()

	return func() {
		w.Shutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("worker did not exit")
		}
	}
}

func TestNew(t *testing.T) {
	_, err := worker.New(worker.Config{})
	assert.Error(t, err)
}

func TestWorkerExecutesTasksInOrderWithoutOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)

	var active, maxActive atomic.Int32
	var mu sync.Mutex
	var order []string
	body := func(name string) worker.Func {
		return func(ctx context.Context, e worker.Exec) error {
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return nil
		}
	}

	for _, name := range []string{"A", "B", "C"} {
		_, err := w.Enqueue(worker.Task{Name: name, Run: body(name)})
		require.NoError(t, err)
	}

	stop := runWorker(t, w)
	rec.waitFinished(t, 3)
	stop()

	assert.Equal([]string{"A", "B", "C"}, order)
	assert.Equal(int32(1), maxActive.Load())
	assert.Equal([]string{
		"state", "start:A", "done:A", "state",
		"state", "start:B", "done:B", "state",
		"state", "start:C", "done:C", "state",
	}, rec.kinds())
	assert.False(st.TaskRunning())
}

func TestWorkerDropsTaskWhenStopSetWhileQueued(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)

	var aExecuted, bExecuted atomic.Bool
	_, err := w.Enqueue(worker.Task{Name: "A", Run: func(ctx context.Context, e worker.Exec) error {
		aExecuted.Store(true)
		return nil
	}})
	require.NoError(t, err)
	_, err = w.Enqueue(worker.Task{Name: "B", Run: func(ctx context.Context, e worker.Exec) error {
		bExecuted.Store(true)
		return nil
	}})
	require.NoError(t, err)

	// Stop requested before the worker dequeues anything.
	assert.True(w.Cancel())

	stop := runWorker(t, w)
	got := rec.waitFinished(t, 2)
	stop()

	assert.False(aExecuted.Load())
	assert.True(bExecuted.Load())
	assert.Equal(model.TaskStatusDropped, got[0].Record.Status)
	assert.ErrorIs(got[0].Err, model.ErrCancelled)
	assert.False(got[0].Failed())
	assert.Equal(model.TaskStatusDone, got[1].Record.Status)
}

func TestWorkerCleansFlagsAfterEveryOutcome(t *testing.T) {
	tests := map[string]struct {
		run       worker.Func
		expStatus model.TaskStatus
	}{
		"After a successful task.": {
			run:       func(ctx context.Context, e worker.Exec) error { return nil },
			expStatus: model.TaskStatusDone,
		},

		"After a failed task.": {
			run:       func(ctx context.Context, e worker.Exec) error { return errors.New("git exploded") },
			expStatus: model.TaskStatusFailed,
		},

		"After a panicking task.": {
			run:       func(ctx context.Context, e worker.Exec) error { panic("boom") },
			expStatus: model.TaskStatusFailed,
		},

		"After a cancelled task.": {
			run: func(ctx context.Context, e worker.Exec) error {
				e.Stop.Set()
				return e.Checkpoint()
			},
			expStatus: model.TaskStatusCancelled,
		},

		"After a task that sets the stop signal and still succeeds.": {
			run: func(ctx context.Context, e worker.Exec) error {
				e.Stop.Set()
				return nil
			},
			expStatus: model.TaskStatusDone,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			assert := assert.New(t)

			st := state.New()
			rec := newRecorder()
			w := newWorker(t, st, rec)

			var stopSetAtStart, runningAtStart atomic.Bool
			_, err := w.Enqueue(worker.Task{Name: "first", Run: test.run})
			require.NoError(t, err)
			_, err = w.Enqueue(worker.Task{Name: "second", Run: func(ctx context.Context, e worker.Exec) error {
				stopSetAtStart.Store(e.Stop.IsSet())
				runningAtStart.Store(st.TaskRunning())
				return nil
			}})
			require.NoError(t, err)

			stop := runWorker(t, w)
			got := rec.waitFinished(t, 2)
			stop()

			assert.Equal(test.expStatus, got[0].Record.Status)
			assert.Equal(model.TaskStatusDone, got[1].Record.Status)
			assert.False(stopSetAtStart.Load())
			assert.True(runningAtStart.Load())
			assert.False(st.TaskRunning())
		})
	}
}

func TestWorkerCooperativeCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)

	var before, after atomic.Bool
	_, err := w.Enqueue(worker.Task{Name: "A", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(t, err)
	_, err = w.Enqueue(worker.Task{Name: "B", Run: func(ctx context.Context, e worker.Exec) error {
		before.Store(true)
		e.Stop.Set()
		if err := e.Checkpoint(); err != nil {
			return err
		}
		after.Store(true)
		return nil
	}})
	require.NoError(t, err)
	_, err = w.Enqueue(worker.Task{Name: "C", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(t, err)

	stop := runWorker(t, w)
	got := rec.waitFinished(t, 3)
	stop()

	assert.True(before.Load())
	assert.False(after.Load())
	assert.Equal(model.TaskStatusCancelled, got[1].Record.Status)
	assert.ErrorIs(got[1].Err, model.ErrCancelled)
	assert.False(got[1].Failed())
	assert.Equal(model.TaskStatusDone, got[2].Record.Status)
}

func TestWorkerCancelRunningTask(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)

	started := make(chan struct{})
	_, err := w.Enqueue(worker.Task{Name: "update-all", Run: func(ctx context.Context, e worker.Exec) error {
		close(started)
		for {
			if err := e.Checkpoint(); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
	}})
	require.NoError(t, err)

	stop := runWorker(t, w)
	<-started
	name, ok := w.Current()
	assert.True(ok)
	assert.Equal("update-all", name)
	assert.True(w.Cancel())
	got := rec.waitFinished(t, 1)
	stop()

	assert.Equal(model.TaskStatusCancelled, got[0].Record.Status)
}

func TestWorkerCancelWhileIdleIsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)
	stop := runWorker(t, w)

	assert.False(w.Cancel())
	assert.False(st.Stop().IsSet())

	// The worker should still be alive and processing.
	_, err := w.Enqueue(worker.Task{Name: "A", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(t, err)
	got := rec.waitFinished(t, 1)
	stop()

	assert.Equal(model.TaskStatusDone, got[0].Record.Status)
}

func TestWorkerRecoversFromDispatchFailures(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	var panicked atomic.Bool
	d := worker.DispatcherFunc(func(msg any) {
		if _, ok := msg.(worker.TaskStartedMsg); ok && panicked.CompareAndSwap(false, true) {
			panic("ui gone")
		}
		rec.Send(msg)
	})
	w := newWorker(t, st, d)

	_, err := w.Enqueue(worker.Task{Name: "A", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(t, err)
	_, err = w.Enqueue(worker.Task{Name: "B", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(t, err)

	stop := runWorker(t, w)
	got := rec.waitFinished(t, 1)
	stop()

	assert.True(panicked.Load())
	assert.Equal("B", got[0].Record.Name)
	assert.False(st.TaskRunning())
}

func TestWorkerShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	st := state.New()
	rec := newRecorder()
	w := newWorker(t, st, rec)

	started := make(chan struct{})
	_, err := w.Enqueue(worker.Task{Name: "long", Run: func(ctx context.Context, e worker.Exec) error {
		close(started)
		for e.Checkpoint() == nil {
			time.Sleep(5 * time.Millisecond)
		}
		return e.Checkpoint()
	}})
	require.NoError(t, err)
	_, err = w.Enqueue(worker.Task{Name: "queued", Run: func(ctx context.Context, e worker.Exec) error {
		t.Errorf("queued task should not run")
		return nil
	}})
	require.NoError(t, err)

	stop := runWorker(t, w)
	<-started
	stop()

	got := rec.waitFinished(t, 2)
	assert.Equal(model.TaskStatusCancelled, got[0].Record.Status)
	assert.Equal(model.TaskStatusDropped, got[1].Record.Status)

	_, err = w.Enqueue(worker.Task{Name: "late", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	assert.ErrorIs(err, worker.ErrClosed)
}

func TestWorkerContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newWorker(t, state.New(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit on context cancellation")
	}
}

func TestWorkerEnqueueValidation(t *testing.T) {
	w := newWorker(t, state.New(), nil)
	_, err := w.Enqueue(worker.Task{Name: "no-body"})
	assert.ErrorIs(t, err, model.ErrNotValid)
	assert.Equal(t, 0, w.Pending())
}

func TestWorkerRecordsHistory(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)
	require := require.New(t)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec := newRecorder()
	w, err := worker.New(worker.Config{
		State:        state.New(),
		Dispatcher:   rec,
		History:      repo,
		PollInterval: 10 * time.Millisecond,
		Now:          func() time.Time { return now },
	})
	require.NoError(err)

	id, err := w.Enqueue(worker.Task{Name: "activate-version", Run: func(ctx context.Context, e worker.Exec) error {
		e.Summary.OK("checkout", "v0.3.10")
		e.Summary.Fail("submodule update", fmt.Errorf("exit status 1"))
		return nil
	}})
	require.NoError(err)

	stop := runWorker(t, w)
	rec.waitFinished(t, 1)
	stop()

	got, err := repo.GetTask(context.Background(), id)
	require.NoError(err)
	assert.Equal("activate-version", got.Name)
	assert.Equal(model.TaskStatusDone, got.Status)
	assert.Equal("[ok]      checkout: v0.3.10\n[failed]  submodule update: exit status 1", got.Summary)
	assert.Equal(now, got.StartedAt)
}

func TestWorkerHistoryFailureDoesNotFailTask(t *testing.T) {
	defer goleak.VerifyNone(t)
	require := require.New(t)

	mRepo := &storagemock.MockTaskHistoryRepository{}
	mRepo.On("RecordTask", mock.Anything, mock.MatchedBy(func(r model.TaskRecord) bool {
		return r.Name == "refresh versions" && r.Status == model.TaskStatusDone
	})).Once().Return(fmt.Errorf("disk full"))

	rec := newRecorder()
	w, err := worker.New(worker.Config{
		State:        state.New(),
		Dispatcher:   rec,
		History:      mRepo,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(err)

	_, err = w.Enqueue(worker.Task{Name: "refresh versions", Run: func(ctx context.Context, e worker.Exec) error { return nil }})
	require.NoError(err)

	stop := runWorker(t, w)
	got := rec.waitFinished(t, 1)
	stop()

	assert.NoError(t, got[0].Err)
	assert.Equal(t, model.TaskStatusDone, got[0].Record.Status)
	mRepo.AssertExpectations(t)
}
