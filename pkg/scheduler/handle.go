package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/worker"
	"github.com/google/uuid"
)

var (
	// Recorded as the outcome of a task that was cancelled.
	ErrCancelled = errors.New("task cancelled")
)

// A unit of work. The context carries the identity of the worker running
// the task and is cancelled if the task's handle is cancelled.
type Task func(ctx context.Context) error

// A task body panicked. The panic is recovered by the worker
// and recorded as the task's failure.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

type taskIdKey struct{}

// Returns the id of the task whose body is running with ctx.
func TaskId(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIdKey{}).(string)
	return id, ok
}

// Receives status transitions of a handle.
type handleObserver interface {
	taskStatusChanged(h *Handle, from, to TaskStatus)
}

// The scheduler's representation of a submitted task and its eventual outcome.
type Handle struct {
	sync.RWMutex

	id   string
	name string
	task Task

	// Cancelled when the handle is cancelled or completes.
	ctx    context.Context
	cancel context.CancelFunc

	// Closed when the handle reaches a terminal status.
	done chan struct{}

	status   TaskStatus
	err      error
	worker   worker.ID
	queued   time.Time
	started  time.Time
	finished time.Time

	hooks handleObserver
}

func newHandle(name string, task Task, hooks handleObserver) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	id, _ := uuid.NewRandom()

	return &Handle{
		id:     id.String(),
		name:   name,
		task:   task,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		status: TaskQueued,
		queued: time.Now(),
		hooks:  hooks,
	}
}

// Unique identity of the handle.
func (h *Handle) Id() string {
	return h.id
}

// Human readable name given at submission.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Status() TaskStatus {
	h.RLock()
	defer h.RUnlock()
	return h.status
}

// Returns the outcome of the task: nil on success, the task's error on
// failure and ErrCancelled if the handle was cancelled.
// Returns nil while the task is still in progress.
func (h *Handle) Err() error {
	h.RLock()
	defer h.RUnlock()
	return h.err
}

// Worker that ran, or is running, the task. Empty if the task never started.
func (h *Handle) Worker() worker.ID {
	h.RLock()
	defer h.RUnlock()
	return h.worker
}

// Time spent executing the task body, or zero if it never started.
func (h *Handle) Duration() time.Duration {
	h.RLock()
	defer h.RUnlock()
	if h.started.IsZero() {
		return 0
	}
	if h.finished.IsZero() {
		return time.Since(h.started)
	}
	return h.finished.Sub(h.started)
}

// Channel closed when the handle reaches a terminal status.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Block until the handle is terminal or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request cancellation. A queued task will never run. A running task has
// its context cancelled and the handle becomes terminal immediately; the
// task body is expected to observe the cancellation and return.
// Returns false if the handle was already terminal.
func (h *Handle) Cancel() bool {
	return h.setStatus(TaskCancelled, ErrCancelled)
}

// Executed by a pool worker.
func (h *Handle) run(id worker.ID) {
	h.Lock()
	if h.status != TaskQueued {
		// Cancelled while queued
		h.Unlock()
		return
	}
	h.worker = id
	h.Unlock()

	if !h.setStatus(TaskRunning, nil) {
		return
	}

	ctx := context.WithValue(worker.WithID(h.ctx, id), taskIdKey{}, h.id)
	err := h.invoke(ctx)
	if err != nil {
		h.setStatus(TaskFailed, err)
	} else {
		h.setStatus(TaskSucceeded, nil)
	}
}

func (h *Handle) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h.task(ctx)
}

// Set the status of the task.
// Queued may move to running or cancelled, running to any terminal status.
// Terminal statuses are final. Returns true if the status was changed.
func (h *Handle) setStatus(status TaskStatus, err error) bool {
	h.Lock()

	from := h.status
	if status == from || from.IsCompleted() || (status == TaskQueued) {
		h.Unlock()
		log.Tracef("err - task - id: %s, status: %v - new status rejected: %v", h.id, from, status)
		return false
	}

	if from == TaskQueued && (status == TaskSucceeded || status == TaskFailed) {
		h.Unlock()
		log.Tracef("err - task - id: %s, status: %v - new status rejected: %v", h.id, from, status)
		return false
	}

	h.status = status
	switch {
	case status == TaskRunning:
		h.started = time.Now()
	case status.IsCompleted():
		h.err = err
		h.finished = time.Now()
		h.cancel()
		close(h.done)
	}
	h.Unlock()

	if h.hooks != nil {
		h.hooks.taskStatusChanged(h, from, status)
	}
	return true
}
