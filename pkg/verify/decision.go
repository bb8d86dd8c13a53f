// Package verify decides when a research task has collected enough evidence.
// A Validator runs named checkers against the task's completion policy and
// returns a Decision the execution loop applies.
package verify

import (
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Verdict is the outcome of evaluating a task.
type Verdict string

const (
	VerdictDone     Verdict = "done"
	VerdictContinue Verdict = "continue"
	VerdictFailed   Verdict = "failed"
)

// Check records the outcome of a single checker.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Actual  any    `json:"actual,omitempty"`
	Message string `json:"message,omitempty"`
}

// Conflict lists the distinct values collected for one field of one entity
// and the value resolution picked.
type Conflict struct {
	Entity string   `json:"entity,omitempty"`
	Field  string   `json:"field"`
	Values []string `json:"values"`
	Chosen string   `json:"chosen"`
}

// Decision is what the Validator concluded about a task.
type Decision struct {
	TaskID    string      `json:"task_id"`
	Verdict   Verdict     `json:"verdict"`
	Reason    task.Reason `json:"reason,omitempty"`
	Message   string      `json:"message,omitempty"`
	Checks    []Check     `json:"checks"`
	Missing   []string    `json:"missing,omitempty"`
	Conflicts []Conflict  `json:"conflicts,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Passed reports whether every check passed.
func (d Decision) Passed() bool {
	for _, c := range d.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}
