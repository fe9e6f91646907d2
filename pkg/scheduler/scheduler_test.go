package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/browsermob/agent/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SchedulerTest struct {
	suite.Suite
	ctx    context.Context
	cancel func()
}

func (suite *SchedulerTest) SetupTest() {
	suite.ctx, suite.cancel = context.WithTimeout(context.Background(), 10*time.Second)
}

func (suite *SchedulerTest) TearDownTest() {
	suite.cancel()
}

// Tracks how many task bodies run at the same time.
type concurrencyProbe struct {
	current atomic.Int64
	max     atomic.Int64
	runs    atomic.Int64
}

func (p *concurrencyProbe) task(d time.Duration, err error) Task {
	return func(ctx context.Context) error {
		n := p.current.Add(1)
		defer p.current.Add(-1)
		p.runs.Add(1)

		for {
			old := p.max.Load()
			if n <= old || p.max.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(d)
		return err
	}
}

// Records the order in which handles complete.
type orderObserver struct {
	mu    sync.Mutex
	order []string
}

func (o *orderObserver) TaskStatusChanged(h *Handle, status TaskStatus) {
	if !status.IsCompleted() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = append(o.order, h.Name())
}

func (o *orderObserver) Order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.order...)
}

func (suite *SchedulerTest) TestConcurrencyNeverExceedsPoolSize() {
	for _, size := range []int{1, 2, 3, 5} {
		for _, count := range []int{0, 1, 7, 20} {
			probe := &concurrencyProbe{}
			sched := NewScheduler(Options{Name: "bound", Size: size})

			for i := 0; i < count; i++ {
				sched.Submit(fmt.Sprintf("task-%d", i), probe.task(time.Duration(i%3)*time.Millisecond, nil))
			}

			assert.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
			assert.LessOrEqual(suite.T(), probe.max.Load(), int64(size), "size=%d count=%d", size, count)
			assert.LessOrEqual(suite.T(), sched.Statistics().PeakRunningTasks, int64(size))
			assert.Equal(suite.T(), int64(count), probe.runs.Load())
			assert.Equal(suite.T(), 0, sched.Pending())

			for _, h := range sched.Handles() {
				assert.True(suite.T(), h.Status().IsCompleted())
			}
		}
	}
}

func (suite *SchedulerTest) TestTwoWorkersFiveTasks() {
	probe := &concurrencyProbe{}
	sched := NewScheduler(Options{Name: "two", Size: 2})

	durations := []time.Duration{30, 5, 20, 1, 10}
	for i, d := range durations {
		sched.Submit(fmt.Sprintf("task-%d", i), probe.task(d*time.Millisecond, nil))
	}

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))

	assert.LessOrEqual(suite.T(), probe.max.Load(), int64(2))
	assert.Len(suite.T(), sched.Handles(), 5)
	for _, h := range sched.Handles() {
		assert.Equal(suite.T(), TaskSucceeded, h.Status())
		assert.NoError(suite.T(), h.Err())
		assert.NotEmpty(suite.T(), h.Worker())
	}

	stats := sched.Statistics()
	assert.Equal(suite.T(), int64(2), stats.Workers)
	assert.Equal(suite.T(), int64(5), stats.SucceededTasks)
	assert.Equal(suite.T(), int64(5), stats.CompletedTasks)
	assert.Equal(suite.T(), int64(0), stats.QueuedTasks)
	require.Eventually(suite.T(), func() bool {
		return sched.Statistics().RunningTasks == 0
	}, time.Second, time.Millisecond)
}

func (suite *SchedulerTest) TestFailingTaskDoesNotAbortBatch() {
	boom := errors.New("boom")
	probe := &concurrencyProbe{}
	sched := NewScheduler(Options{Name: "fail", Size: 2})

	var failing *Handle
	for i := 0; i < 5; i++ {
		var err error
		if i == 1 {
			err = boom
		}
		h := sched.Submit(fmt.Sprintf("task-%d", i), probe.task(5*time.Millisecond, err))
		if i == 1 {
			failing = h
		}
	}

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))

	assert.Equal(suite.T(), TaskFailed, failing.Status())
	assert.ErrorIs(suite.T(), failing.Err(), boom)
	assert.Equal(suite.T(), int64(5), probe.runs.Load())

	stats := sched.Statistics()
	assert.Equal(suite.T(), int64(4), stats.SucceededTasks)
	assert.Equal(suite.T(), int64(1), stats.FailedTasks)
}

func (suite *SchedulerTest) TestPanickingTaskIsRecordedAsFailure() {
	sched := NewScheduler(Options{Name: "panic", Size: 1})

	h1 := sched.Submit("panics", func(ctx context.Context) error {
		panic("kaboom")
	})
	h2 := sched.Submit("runs", func(ctx context.Context) error {
		return nil
	})

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))

	var panicErr *PanicError
	assert.Equal(suite.T(), TaskFailed, h1.Status())
	assert.ErrorAs(suite.T(), h1.Err(), &panicErr)
	assert.Equal(suite.T(), "kaboom", panicErr.Value)

	// The worker survived the panic and ran the next task.
	assert.Equal(suite.T(), TaskSucceeded, h2.Status())
}

func (suite *SchedulerTest) TestCompletionsObservedInCompletionOrder() {
	observer := &orderObserver{}
	sched := NewScheduler(Options{Name: "order", Size: 2})
	sched.AddObserver(observer)

	release := make(chan struct{})
	sched.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	fast := sched.Submit("fast", func(ctx context.Context) error {
		return nil
	})

	// The fast task completes while the slow one is still blocked.
	require.NoError(suite.T(), fast.Wait(suite.ctx))
	require.Eventually(suite.T(), func() bool {
		return len(observer.Order()) == 1
	}, time.Second, time.Millisecond)
	close(release)

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
	assert.Equal(suite.T(), []string{"fast", "slow"}, observer.Order())
}

func (suite *SchedulerTest) TestInterruptCancelsOutstandingTasks() {
	sched := NewScheduler(Options{Name: "interrupt", Size: 2})

	var started sync.WaitGroup
	started.Add(2)
	var runs atomic.Int64

	for i := 0; i < 5; i++ {
		sched.Submit(fmt.Sprintf("task-%d", i), func(ctx context.Context) error {
			runs.Add(1)
			started.Done()
			<-ctx.Done()
			return ctx.Err()
		})
	}

	started.Wait()

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	err := sched.AwaitBatchCompletion(ctx)
	assert.ErrorIs(suite.T(), err, ErrInterrupted)
	assert.ErrorIs(suite.T(), err, context.Canceled)

	assert.Equal(suite.T(), 0, sched.Pending())
	for _, h := range sched.Handles() {
		assert.Equal(suite.T(), TaskCancelled, h.Status())
		assert.ErrorIs(suite.T(), h.Err(), ErrCancelled)
	}

	// Only the two tasks that were running ever started.
	assert.Equal(suite.T(), int64(2), runs.Load())
	assert.Equal(suite.T(), int64(5), sched.Statistics().CancelledTasks)

	// The pool is shut down.
	late := sched.Submit("late", func(ctx context.Context) error {
		suite.Fail("task submitted after teardown must not run")
		return nil
	})
	assert.Equal(suite.T(), TaskCancelled, late.Status())
	assert.Equal(suite.T(), 0, sched.Pending())
}

func (suite *SchedulerTest) TestCancelQueuedTask() {
	sched := NewScheduler(Options{Name: "cancel", Size: 1})

	release := make(chan struct{})
	first := sched.Submit("first", func(ctx context.Context) error {
		<-release
		return nil
	})

	var ran atomic.Bool
	second := sched.Submit("second", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	assert.True(suite.T(), second.Cancel())
	assert.False(suite.T(), second.Cancel())
	close(release)

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
	assert.Equal(suite.T(), TaskSucceeded, first.Status())
	assert.Equal(suite.T(), TaskCancelled, second.Status())
	assert.False(suite.T(), ran.Load())
	assert.Empty(suite.T(), second.Worker())
}

func (suite *SchedulerTest) TestCancelledTaskCountsAsRunningUntilItReturns() {
	sched := NewScheduler(Options{Name: "draining", Size: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	h := sched.Submit("slow-cleanup", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		<-release
		return ctx.Err()
	})
	<-started

	assert.Equal(suite.T(), int64(1), sched.Statistics().RunningTasks)
	assert.True(suite.T(), h.Cancel())

	stats := sched.Statistics()
	assert.Equal(suite.T(), TaskCancelled, h.Status())
	assert.Equal(suite.T(), int64(1), stats.CancelledTasks)
	assert.Equal(suite.T(), int64(1), stats.RunningTasks)

	close(release)
	require.Eventually(suite.T(), func() bool {
		return sched.Statistics().RunningTasks == 0
	}, time.Second, time.Millisecond)
	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
}

func (suite *SchedulerTest) TestTasksRunOnNamedWorkers() {
	sched := NewScheduler(Options{Name: "named", Size: 1})

	var seen worker.ID
	h := sched.Submit("task", func(ctx context.Context) error {
		seen, _ = worker.FromContext(ctx)
		return nil
	})

	require.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
	assert.Equal(suite.T(), worker.NewID("named", sched.pool.number, 1), seen)
	assert.Equal(suite.T(), seen, h.Worker())
}

func (suite *SchedulerTest) TestAwaitIsIdempotent() {
	sched := NewScheduler(Options{Size: 1})
	sched.Submit("task", func(ctx context.Context) error { return nil })

	assert.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
	assert.NoError(suite.T(), sched.AwaitBatchCompletion(suite.ctx))
	assert.Equal(suite.T(), "batch", sched.Name())
}

func TestScheduler(t *testing.T) {
	suite.Run(t, new(SchedulerTest))
}
