package scheduler

// Scheduler statistics
type Statistics struct {
	// Number of workers
	Workers int64

	// Number of tasks that are queued
	QueuedTasks int64

	// Number of task bodies currently executing on a worker. A cancelled
	// task counts until its body has returned.
	RunningTasks int64

	// Total number of successful tasks
	SucceededTasks int64

	// Total number of failed tasks
	FailedTasks int64

	// Total number of cancelled tasks
	CancelledTasks int64

	// Total number of completed tasks (successful, failed or cancelled)
	CompletedTasks int64

	// Highest number of task bodies that executed at the same time
	PeakRunningTasks int64
}

// Get scheduler statistics
func (s *Scheduler) Statistics() *Statistics {
	s.mu.Lock()
	stats := s.stats
	s.mu.Unlock()

	stats.Workers = int64(s.pool.Size())
	stats.RunningTasks = int64(s.pool.Active())
	stats.PeakRunningTasks = int64(s.pool.Peak())
	return &stats
}
