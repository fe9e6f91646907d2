package scheduler

// Lifecycle of a submitted task.
type TaskStatus int

const (
	TaskQueued TaskStatus = iota
	TaskRunning
	TaskSucceeded
	TaskFailed
	TaskCancelled
)

func (status TaskStatus) String() string {
	switch status {
	case TaskQueued:
		return "QUEUED"
	case TaskRunning:
		return "RUNNING"
	case TaskSucceeded:
		return "SUCCEEDED"
	case TaskFailed:
		return "FAILED"
	case TaskCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Should return true if the task is no longer in progress
func (status TaskStatus) IsCompleted() bool {
	switch status {
	case TaskQueued, TaskRunning:
		return false
	default:
		return true
	}
}

// Should return true if the task may still be cancelled
func (status TaskStatus) IsCancellable() bool {
	return !status.IsCompleted()
}
