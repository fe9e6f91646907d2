package scheduler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type taskView struct {
	Id       string  `json:"id"`
	Name     string  `json:"name"`
	Status   string  `json:"status"`
	Worker   string  `json:"worker,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

func newTaskView(h *Handle) taskView {
	view := taskView{
		Id:       h.Id(),
		Name:     h.Name(),
		Status:   h.Status().String(),
		Worker:   h.Worker().String(),
		Duration: h.Duration().Seconds(),
	}
	if err := h.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

// Expose batch progress over HTTP.
func NewHttpHandler(scheduler *Scheduler, r *echo.Echo) {
	r.GET("/metrics", func(c echo.Context) error {
		stats := scheduler.Statistics()

		metrics := fmt.Sprintln("# TYPE agent_workers gauge")
		metrics += fmt.Sprintln("# HELP agent_workers The number of workers in the pool.")
		metrics += fmt.Sprintf("agent_workers %d\n", stats.Workers)

		metrics += fmt.Sprintln("# TYPE agent_tasks_queued gauge")
		metrics += fmt.Sprintln("# HELP agent_tasks_queued The number of tests currently queued.")
		metrics += fmt.Sprintf("agent_tasks_queued %d\n", stats.QueuedTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_running gauge")
		metrics += fmt.Sprintln("# HELP agent_tasks_running The number of tests currently running.")
		metrics += fmt.Sprintf("agent_tasks_running %d\n", stats.RunningTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_running_peak gauge")
		metrics += fmt.Sprintln("# HELP agent_tasks_running_peak The highest number of tests that ran at the same time.")
		metrics += fmt.Sprintf("agent_tasks_running_peak %d\n", stats.PeakRunningTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_passed_total counter")
		metrics += fmt.Sprintln("# HELP agent_tasks_passed_total The total number of successful tests.")
		metrics += fmt.Sprintf("agent_tasks_passed_total %d\n", stats.SucceededTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_failed_total counter")
		metrics += fmt.Sprintln("# HELP agent_tasks_failed_total The total number of failed tests.")
		metrics += fmt.Sprintf("agent_tasks_failed_total %d\n", stats.FailedTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_cancelled_total counter")
		metrics += fmt.Sprintln("# HELP agent_tasks_cancelled_total The total number of cancelled tests.")
		metrics += fmt.Sprintf("agent_tasks_cancelled_total %d\n", stats.CancelledTasks)

		metrics += fmt.Sprintln("# TYPE agent_tasks_total counter")
		metrics += fmt.Sprintln("# HELP agent_tasks_total The total number of completed tests.")
		metrics += fmt.Sprintf("agent_tasks_total %d\n", stats.CompletedTasks)

		return c.String(http.StatusOK, metrics)
	})

	r.GET("/api/v1/tasks", func(c echo.Context) error {
		handles := scheduler.Handles()
		tasks := make([]taskView, 0, len(handles))

		for _, h := range handles {
			tasks = append(tasks, newTaskView(h))
		}

		return c.JSON(http.StatusOK, tasks)
	})

	r.GET("/api/v1/tasks/:id", func(c echo.Context) error {
		for _, h := range scheduler.Handles() {
			if h.Id() != c.Param("id") {
				continue
			}

			return c.JSON(http.StatusOK, newTaskView(h))
		}

		return c.String(http.StatusNotFound, "Not found")
	})
}
