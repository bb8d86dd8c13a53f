package task

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
)

// Limits bound how many steps a run and each of its tasks may take.
type Limits struct {
	MaxSteps        int `json:"max_steps" yaml:"max_steps"`
	MaxStepsPerTask int `json:"max_steps_per_task" yaml:"max_steps_per_task"`
}

// DefaultLimits returns the stock step limits.
func DefaultLimits() Limits {
	return Limits{MaxSteps: 30, MaxStepsPerTask: 8}
}

// Run is one workflow invocation. It owns its tasks; the global step counter
// is reserved atomically and never exceeds Limits.MaxSteps.
type Run struct {
	ID              string
	Goal            string
	Tasks           []*Task
	Limits          Limits
	Profile         *profile.Profile
	ExcludeKeywords []string
	StartedAt       time.Time
	EndedAt         time.Time

	steps atomic.Int64
}

// NewRun creates a run over the given tasks. Non-positive limits fall back to
// the defaults.
func NewRun(id, goal string, tasks []*Task, limits Limits) *Run {
	def := DefaultLimits()
	if limits.MaxSteps <= 0 {
		limits.MaxSteps = def.MaxSteps
	}
	if limits.MaxStepsPerTask <= 0 {
		limits.MaxStepsPerTask = def.MaxStepsPerTask
	}
	return &Run{ID: id, Goal: goal, Tasks: tasks, Limits: limits}
}

// ReserveStep claims one global step. It returns false once the budget is spent.
func (r *Run) ReserveStep() bool {
	for {
		cur := r.steps.Load()
		if cur >= int64(r.Limits.MaxSteps) {
			return false
		}
		if r.steps.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Steps returns the number of global steps taken.
func (r *Run) Steps() int { return int(r.steps.Load()) }

// BudgetLeft reports whether another global step can be reserved.
func (r *Run) BudgetLeft() bool { return r.steps.Load() < int64(r.Limits.MaxSteps) }

// Task looks up a task by ID.
func (r *Run) Task(id string) *Task {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Pending returns the non-terminal tasks in order.
func (r *Run) Pending() []*Task {
	var out []*Task
	for _, t := range r.Tasks {
		if !t.IsTerminal() {
			out = append(out, t)
		}
	}
	return out
}

// AllTerminal reports whether every task is done or failed.
func (r *Run) AllTerminal() bool {
	return len(r.Pending()) == 0
}

// FailRemaining fails every non-terminal task and returns how many changed.
func (r *Run) FailRemaining(reason Reason, detail string) int {
	n := 0
	for _, t := range r.Pending() {
		if t.Fail(reason, detail) == nil {
			n++
		}
	}
	return n
}

// Counts tallies tasks by status.
func (r *Run) Counts() map[Status]int {
	out := make(map[Status]int, 4)
	for _, t := range r.Tasks {
		out[t.Status()]++
	}
	return out
}

// RunRecord is the serialized form of a run.
type RunRecord struct {
	ID              string           `json:"id"`
	Goal            string           `json:"goal"`
	Tasks           []Record         `json:"tasks"`
	Limits          Limits           `json:"limits"`
	Steps           int              `json:"steps"`
	Profile         *profile.Profile `json:"profile,omitempty"`
	ExcludeKeywords []string         `json:"exclude_keywords,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         time.Time        `json:"ended_at"`
}

// Record snapshots the run.
func (r *Run) Record() RunRecord {
	rec := RunRecord{
		ID: r.ID, Goal: r.Goal, Limits: r.Limits, Steps: r.Steps(),
		Profile: r.Profile, ExcludeKeywords: r.ExcludeKeywords,
		StartedAt: r.StartedAt, EndedAt: r.EndedAt,
	}
	for _, t := range r.Tasks {
		rec.Tasks = append(rec.Tasks, t.Record())
	}
	return rec
}

// RunFromRecord rebuilds an archived run.
func RunFromRecord(rec RunRecord) *Run {
	r := &Run{
		ID: rec.ID, Goal: rec.Goal, Limits: rec.Limits,
		Profile: rec.Profile, ExcludeKeywords: rec.ExcludeKeywords,
		StartedAt: rec.StartedAt, EndedAt: rec.EndedAt,
	}
	r.steps.Store(int64(rec.Steps))
	for _, tr := range rec.Tasks {
		r.Tasks = append(r.Tasks, FromRecord(tr))
	}
	return r
}

func (r *Run) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}
