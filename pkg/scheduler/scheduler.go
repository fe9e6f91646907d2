package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/browsermob/agent/pkg/log"
)

var (
	// Returned by AwaitBatchCompletion when the wait was interrupted.
	ErrInterrupted = errors.New("batch interrupted")
)

const DefaultShutdownGrace = 30 * time.Second

// Receives status updates of tasks in a batch.
type Observer interface {
	TaskStatusChanged(h *Handle, status TaskStatus)
}

type Options struct {
	// Name of the batch, used to name workers.
	Name string

	// Number of workers. Defaults to DefaultPoolSize.
	Size int

	// How long teardown waits for workers to exit. Zero selects
	// DefaultShutdownGrace, a negative value does not wait at all.
	ShutdownGrace time.Duration
}

// Runs one batch of tasks on a bounded pool of workers.
//
// Tasks are submitted with Submit and the batch is finished with
// AwaitBatchCompletion, which observes completions in the order they
// happen, then cancels whatever is still outstanding and shuts the
// pool down. Every submitted handle is accounted for exactly once.
type Scheduler struct {
	mu sync.Mutex

	opts Options
	pool *Pool

	// All handles in submission order.
	handles []*Handle

	// Handles not yet accounted for.
	pending map[*Handle]struct{}

	// Completed handles not yet taken by the waiter, in completion order.
	completed []*Handle
	signal    chan struct{}

	closed    bool
	observers []Observer
	stats     Statistics
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Name == "" {
		opts.Name = "batch"
	}
	if opts.Size <= 0 {
		opts.Size = DefaultPoolSize
	}
	if opts.ShutdownGrace == 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}

	s := &Scheduler{
		opts:    opts,
		pool:    NewPool(opts.Name, opts.Size),
		pending: map[*Handle]struct{}{},
		signal:  make(chan struct{}, 1),
	}
	s.pool.Start()

	log.Debugf("Started %s with %d workers", opts.Name, opts.Size)
	return s
}

// Register an observer of task status changes.
// Observers are called synchronously from the goroutine causing the change.
func (s *Scheduler) AddObserver(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Enqueue a task for execution and return its handle.
// Tasks submitted after the batch has been torn down are cancelled immediately.
func (s *Scheduler) Submit(name string, task Task) *Handle {
	h := newHandle(name, task, s)

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.stats.QueuedTasks++
	closed := s.closed
	if !closed {
		s.pending[h] = struct{}{}
	}
	s.mu.Unlock()

	if closed || !s.pool.Submit(h.run) {
		log.Debugf("Batch %s is closed, cancelling %s", s.opts.Name, name)
		h.Cancel()
		return h
	}

	log.Tracef("add - task - id: %s, name: %s", h.Id(), name)
	return h
}

// Block until every submitted task has completed, or until ctx is cancelled.
//
// Completions are observed in the order they happen. On return, whether
// the wait finished or was interrupted, all still pending handles have
// been cancelled and the pool has been shut down. An interrupted wait
// returns an error matching both ErrInterrupted and ctx.Err().
func (s *Scheduler) AwaitBatchCompletion(ctx context.Context) error {
	var interrupted error

	for s.numPending() > 0 {
		h, err := s.take(ctx)
		if err != nil {
			interrupted = err
			break
		}

		s.remove(h)
		log.Tracef("done - task - id: %s, status: %v", h.Id(), h.Status())
	}

	s.teardown()

	if interrupted != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, interrupted)
	}
	return nil
}

// Returns all handles in submission order.
func (s *Scheduler) Handles() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]*Handle, len(s.handles))
	copy(handles, s.handles)
	return handles
}

// Number of handles not yet accounted for.
func (s *Scheduler) Pending() int {
	return s.numPending()
}

func (s *Scheduler) Name() string {
	return s.opts.Name
}

func (s *Scheduler) numPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Take the next completed handle, blocking until one is available.
func (s *Scheduler) take(ctx context.Context) (*Handle, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		if len(s.completed) > 0 {
			h := s.completed[0]
			s.completed[0] = nil
			s.completed = s.completed[1:]
			s.mu.Unlock()
			return h, nil
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
		case <-ctx.Done():
		}
	}
}

func (s *Scheduler) remove(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, h)
}

// Shut the pool down and cancel all pending handles.
func (s *Scheduler) teardown() {
	s.mu.Lock()
	s.closed = true
	remaining := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		remaining = append(remaining, h)
	}
	s.pending = map[*Handle]struct{}{}
	s.completed = nil
	s.mu.Unlock()

	// Close the queue first so no freed worker picks up another job.
	if dropped := s.pool.Shutdown(); dropped > 0 {
		log.Debugf("Discarded %d queued jobs", dropped)
	}

	for _, h := range remaining {
		if h.Cancel() {
			log.Debugf("Cancelled %s (%s)", h.Name(), h.Id())
		}
	}

	if !s.pool.Wait(s.opts.ShutdownGrace) && s.opts.ShutdownGrace > 0 {
		log.Warnf("Workers of %s did not exit within %v", s.opts.Name, s.opts.ShutdownGrace)
	}
}

func (s *Scheduler) taskStatusChanged(h *Handle, from, to TaskStatus) {
	s.mu.Lock()
	if from == TaskQueued {
		s.stats.QueuedTasks--
	}

	switch to {
	case TaskSucceeded:
		s.stats.SucceededTasks++
	case TaskFailed:
		s.stats.FailedTasks++
	case TaskCancelled:
		s.stats.CancelledTasks++
	}

	if to.IsCompleted() {
		s.stats.CompletedTasks++
		if _, ok := s.pending[h]; ok {
			s.completed = append(s.completed, h)
		}
	}

	observers := s.observers
	s.mu.Unlock()

	if to.IsCompleted() {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}

	for _, observer := range observers {
		observer.TaskStatusChanged(h, to)
	}
}
