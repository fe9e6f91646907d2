package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/browsermob/agent/pkg/browser"
	"github.com/browsermob/agent/pkg/log"
	"github.com/browsermob/agent/pkg/logstash"
	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/session"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/browsermob/agent/pkg/worker"
)

// Tag of the screenshot captured when a test fails.
const FailureTag = "FAILURE"

// Time allowed for cleanup calls (failure screenshot, session stop)
// after a test has finished or been cancelled.
const cleanupTimeout = 30 * time.Second

// Body of a test. Returning an error, or panicking, fails the test.
type TestFunc func(ctx context.Context, t *T) error

// One test method to run.
type TestCase struct {
	Class  string
	Method string
	Body   TestFunc
}

// Runs batches of browser tests, one browser session per running test.
type Runner struct {
	config    *Config
	provider  browser.Provider
	registry  *session.Registry
	platform  *browser.Platform
	stash     logstash.LogStash
	observers []scheduler.Observer
}

func NewRunner(config *Config, provider browser.Provider, registry *session.Registry) *Runner {
	return &Runner{
		config:   config,
		provider: provider,
		registry: registry,
	}
}

// Set the platform properties attached to hosted job descriptors.
func (r *Runner) SetPlatform(platform *browser.Platform) {
	r.platform = platform
}

// Keep a log of every test in stash, keyed by task id.
func (r *Runner) SetLogStash(stash logstash.LogStash) {
	r.stash = stash
}

// Register an observer on every batch scheduled by the runner.
func (r *Runner) AddObserver(observer scheduler.Observer) {
	r.observers = append(r.observers, observer)
}

// Validate the configuration and submit all tests. The returned batch
// must be waited for. No test is started if the configuration is invalid.
func (r *Runner) Schedule(cases []TestCase) (*Batch, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler(scheduler.Options{
		Name:          r.config.Name,
		Size:          r.config.Threads,
		ShutdownGrace: r.config.ShutdownGrace,
	})
	sched.AddObserver(&logObserver{})
	for _, observer := range r.observers {
		sched.AddObserver(observer)
	}

	batch := &Batch{
		scheduler: sched,
		tests:     make([]scheduledTest, 0, len(cases)),
	}

	for _, tc := range cases {
		target, description := browser.Resolve(r.config.Browser, r.config.Sauce, r.platform, tc.Class, tc.Method)
		h := sched.Submit(description, r.newTask(tc, target, description))
		batch.tests = append(batch.tests, scheduledTest{
			TestCase:    tc,
			description: description,
			handle:      h,
		})
	}

	log.Infof("Scheduled %d tests on %d workers", len(cases), r.config.Threads)
	return batch, nil
}

// Schedule all tests and wait for the batch to finish.
func (r *Runner) Run(ctx context.Context, cases []TestCase) (*Result, error) {
	batch, err := r.Schedule(cases)
	if err != nil {
		return nil, err
	}
	return batch.Wait(ctx)
}

// Build the task executing one test on a pool worker.
//
// The browser session is started, bound to the worker, the body runs,
// and then the binding is cleared and the session stopped, in that
// order, whatever the outcome.
func (r *Runner) newTask(tc TestCase, target, description string) scheduler.Task {
	return func(ctx context.Context) (err error) {
		id, _ := worker.FromContext(ctx)
		logger := log.NewPrefixed(id.String())

		lines := r.openLog(ctx, logger)
		if lines != nil {
			defer lines.Close()
			defer func() {
				if err != nil {
					record(lines, log.ErrorLevel, err.Error())
				}
			}()
		}
		record(lines, log.InfoLevel, fmt.Sprintf("%s on %s, target %s", description, id, target))

		sess, err := r.provider(browser.Options{
			Server:      r.config.Server,
			Port:        r.config.ServerPort,
			Browser:     target,
			Application: r.config.Application,
		})
		if err != nil {
			return fmt.Errorf("create browser session: %w", err)
		}

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()
			if stopErr := sess.Stop(stopCtx); stopErr != nil {
				logger.Warnf("Failed to stop browser session of %s: %v", description, stopErr)
			}
		}()

		if err := sess.Start(ctx); err != nil {
			return fmt.Errorf("start browser session: %w", err)
		}

		defer r.registry.Bind(ctx, sess, description, r.config.OutputDir, target, r.config.Application)()

		defer func() {
			if p := recover(); p != nil {
				err = &scheduler.PanicError{Value: p, Stack: debug.Stack()}
			}
			if err != nil {
				err = r.captureFailure(ctx, logger, err)
			}
		}()

		logger.Debugf("Running %s", description)
		return tc.Body(ctx, newT(ctx, r.registry, logger, lines))
	}
}

// Open the test log of the task running with ctx. Logging is
// best-effort: nil is returned if no log can be kept.
func (r *Runner) openLog(ctx context.Context, logger *log.Prefixed) logstash.LogWriter {
	if r.stash == nil {
		return nil
	}

	taskId, ok := scheduler.TaskId(ctx)
	if !ok {
		return nil
	}

	lines, err := r.stash.Append(taskId)
	if err != nil {
		logger.Warnf("Failed to open test log: %v", err)
		return nil
	}
	return lines
}

// Best-effort failure screenshot. A capture error is logged and joined
// after the test's own error, never replacing it.
func (r *Runner) captureFailure(ctx context.Context, logger *log.Prefixed, testErr error) error {
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	path, err := r.registry.CaptureArtifact(captureCtx, FailureTag)
	if err != nil {
		logger.Warnf("Failed to capture failure screenshot: %v", err)
		return errors.Join(testErr, fmt.Errorf("capture failure screenshot: %w", err))
	}

	logger.Infof("Failure screenshot saved to %s", path)
	return utils.NewDetailedError(testErr, path)
}

type scheduledTest struct {
	TestCase
	description string
	handle      *scheduler.Handle
}

// A scheduled batch of tests.
type Batch struct {
	scheduler *scheduler.Scheduler
	tests     []scheduledTest
}

// The scheduler executing the batch, e.g. for exposing progress.
func (b *Batch) Scheduler() *scheduler.Scheduler {
	return b.scheduler
}

// Wait for every test to finish. If ctx is cancelled the remaining tests
// are cancelled; the partial result is returned together with the error.
func (b *Batch) Wait(ctx context.Context) (*Result, error) {
	err := b.scheduler.AwaitBatchCompletion(ctx)
	return b.result(), err
}

func (b *Batch) result() *Result {
	result := &Result{Outcomes: make([]Outcome, 0, len(b.tests))}

	for _, test := range b.tests {
		outcome := Outcome{
			Class:       test.Class,
			Method:      test.Method,
			Description: test.description,
			Id:          test.handle.Id(),
			Status:      test.handle.Status(),
			Err:         test.handle.Err(),
			Worker:      test.handle.Worker(),
			Duration:    test.handle.Duration(),
		}

		var detailed utils.DetailedError
		if errors.As(outcome.Err, &detailed) {
			outcome.Screenshot = detailed.Details()
		}

		result.add(outcome)
	}

	return result
}

// Logs test progress.
type logObserver struct{}

func (o *logObserver) TaskStatusChanged(h *scheduler.Handle, status scheduler.TaskStatus) {
	switch status {
	case scheduler.TaskRunning:
		log.Infof("[%s] START %s", h.Worker(), h.Name())
	case scheduler.TaskSucceeded:
		log.Infof("[%s] PASS  %s (%v)", h.Worker(), h.Name(), h.Duration().Round(time.Millisecond))
	case scheduler.TaskFailed:
		log.Errorf("[%s] FAIL  %s (%v): %v", h.Worker(), h.Name(), h.Duration().Round(time.Millisecond), h.Err())
	case scheduler.TaskCancelled:
		log.Warnf("CANCEL %s", h.Name())
	}
}
