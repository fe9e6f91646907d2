package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/browsermob/agent/pkg/scheduler"
	"github.com/browsermob/agent/pkg/worker"
)

// Terminal state of one test.
type Outcome struct {
	Class       string
	Method      string
	Description string
	Id          string
	Status      scheduler.TaskStatus
	Err         error
	Worker      worker.ID
	Duration    time.Duration

	// Path of the failure screenshot, if one was captured.
	Screenshot string
}

// Outcomes of a batch, in the order the tests were given.
type Result struct {
	Outcomes  []Outcome
	Passed    int
	Failed    int
	Cancelled int
}

func (r *Result) add(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)

	switch outcome.Status {
	case scheduler.TaskSucceeded:
		r.Passed++
	case scheduler.TaskFailed:
		r.Failed++
	default:
		r.Cancelled++
	}
}

// True if every test passed.
func (r *Result) Success() bool {
	return r.Passed == len(r.Outcomes)
}

// Write a plain text summary.
func (r *Result) WriteSummary(w io.Writer) error {
	for _, outcome := range r.Outcomes {
		line := fmt.Sprintf("%-9s %s (%v)", outcome.Status, outcome.Description, outcome.Duration.Round(time.Millisecond))
		if outcome.Err != nil && outcome.Status != scheduler.TaskSucceeded {
			line += ": " + outcome.Err.Error()
		}
		if outcome.Screenshot != "" {
			line += " [" + outcome.Screenshot + "]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d tests, %d passed, %d failed, %d cancelled\n",
		len(r.Outcomes), r.Passed, r.Failed, r.Cancelled)
	return err
}
