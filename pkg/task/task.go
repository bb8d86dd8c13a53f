// Package task holds research tasks, their forward-only status machine and
// the workflow run that owns them.
package task

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s is done or failed.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Reason explains why a task failed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNoProgress      Reason = "NoProgress"
	ReasonBudgetExhausted Reason = "BudgetExhausted"
	ReasonToolUnavailable Reason = "ToolUnavailable"
	ReasonToolFailed      Reason = "ToolFailed"
	ReasonNoToolAvailable Reason = "NoToolAvailable"
	ReasonCancelled       Reason = "Cancelled"
)

// Kind groups tasks by the kind of data they collect.
type Kind string

const (
	KindAccounts   Kind = "accounts"
	KindSignal     Kind = "signal"
	KindContacts   Kind = "contacts"
	KindEnrichment Kind = "enrichment"
	KindResearch   Kind = "research"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoEvidence        = errors.New("task has no evidence")
	ErrTerminal          = errors.New("task is terminal")
)

// Policy is the completion policy a task's evidence must satisfy.
type Policy struct {
	MinEvidence    int      `json:"min_evidence" yaml:"min_evidence"`
	MinConfidence  float64  `json:"min_confidence" yaml:"min_confidence"`
	RequiredFields []string `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
	// VerifiedEmail requires a passing email_status record alongside any
	// email the task reports.
	VerifiedEmail bool `json:"verified_email,omitempty" yaml:"verified_email,omitempty"`
}

// Normalize clamps the policy so that completion always needs at least one
// sourced record and a threshold inside [0,1].
func (p Policy) Normalize() Policy {
	if p.MinEvidence < 1 {
		p.MinEvidence = 1
	}
	if p.MinConfidence < 0 {
		p.MinConfidence = 0
	}
	if p.MinConfidence > 1 {
		p.MinConfidence = 1
	}
	return p
}

// Call is a planned tool invocation for a task.
type Call struct {
	Tool string         `json:"tool" yaml:"tool"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Task is one unit of research. Status, evidence and counters are only
// changed through methods so transitions stay forward-only. A task is
// driven by one goroutine at a time.
type Task struct {
	ID      string
	Goal    string
	Kind    Kind
	Subject string
	Policy  Policy
	Calls   []Call

	status   Status
	reason   Reason
	detail   string
	steps    int
	evidence []evidence.Evidence
	seen     map[string]bool
}

// New creates a pending task with a normalized policy.
func New(id, goal string, kind Kind, policy Policy, calls ...Call) *Task {
	return &Task{
		ID:     id,
		Goal:   goal,
		Kind:   kind,
		Policy: policy.Normalize(),
		Calls:  calls,
		status: StatusPending,
		seen:   make(map[string]bool),
	}
}

func (t *Task) Status() Status { return t.status }
func (t *Task) Reason() Reason { return t.reason }
func (t *Task) Detail() string { return t.detail }
func (t *Task) Steps() int     { return t.steps }
func (t *Task) Len() int       { return len(t.evidence) }

// IsTerminal reports whether the task is done or failed.
func (t *Task) IsTerminal() bool { return t.status.IsTerminal() }

// Evidence returns a copy of the collected evidence in collection order.
func (t *Task) Evidence() []evidence.Evidence {
	out := make([]evidence.Evidence, len(t.evidence))
	copy(out, t.evidence)
	return out
}

// Start moves a pending task to in_progress. Calling it on a task already in
// progress is a no-op.
func (t *Task) Start() error {
	if t.status == StatusInProgress {
		return nil
	}
	return t.transition(StatusInProgress)
}

// Append adds records in order, skipping exact duplicates. It returns the
// number of records added. Invalid records are rejected and nothing after
// them is appended.
func (t *Task) Append(records ...evidence.Evidence) (int, error) {
	if t.IsTerminal() {
		return 0, fmt.Errorf("append to %s: %w", t.ID, ErrTerminal)
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	added := 0
	for _, e := range records {
		if err := e.Validate(); err != nil {
			return added, fmt.Errorf("append to %s: %w", t.ID, err)
		}
		key := e.Key()
		if t.seen[key] {
			continue
		}
		t.seen[key] = true
		t.evidence = append(t.evidence, e)
		added++
	}
	return added, nil
}

// IncStep increments the step counter and returns the new value.
func (t *Task) IncStep() int {
	t.steps++
	return t.steps
}

// Complete marks the task done.
func (t *Task) Complete() error {
	if len(t.evidence) == 0 && t.Policy.MinEvidence >= 1 {
		return fmt.Errorf("complete %s: %w", t.ID, ErrNoEvidence)
	}
	return t.transition(StatusDone)
}

// Fail marks the task failed with a reason and optional detail.
func (t *Task) Fail(reason Reason, detail string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.reason = reason
	t.detail = detail
	return nil
}

func (t *Task) transition(to Status) error {
	if !isAllowedTransition(t.status, to) {
		return fmt.Errorf("%w for %s: %s -> %s", ErrInvalidTransition, t.ID, t.status, to)
	}
	t.status = to
	return nil
}

// pending -> failed covers run-level termination of tasks never started.
func isAllowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusFailed
	case StatusInProgress:
		return to == StatusDone || to == StatusFailed
	default:
		return false
	}
}

// Record is the serialized form of a task.
type Record struct {
	ID       string              `json:"id"`
	Goal     string              `json:"goal"`
	Kind     Kind                `json:"kind"`
	Subject  string              `json:"subject,omitempty"`
	Policy   Policy              `json:"policy"`
	Calls    []Call              `json:"calls,omitempty"`
	Status   Status              `json:"status"`
	Reason   Reason              `json:"reason,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Steps    int                 `json:"steps"`
	Evidence []evidence.Evidence `json:"evidence"`
}

// Record snapshots the task.
func (t *Task) Record() Record {
	return Record{
		ID: t.ID, Goal: t.Goal, Kind: t.Kind, Subject: t.Subject,
		Policy: t.Policy, Calls: t.Calls,
		Status: t.status, Reason: t.reason, Detail: t.detail,
		Steps: t.steps, Evidence: t.Evidence(),
	}
}

// FromRecord rebuilds an archived task.
func FromRecord(r Record) *Task {
	t := &Task{
		ID: r.ID, Goal: r.Goal, Kind: r.Kind, Subject: r.Subject,
		Policy: r.Policy, Calls: r.Calls,
		status: r.Status, reason: r.Reason, detail: r.Detail, steps: r.Steps,
		seen: make(map[string]bool, len(r.Evidence)),
	}
	if t.status == "" {
		t.status = StatusPending
	}
	for _, e := range r.Evidence {
		t.evidence = append(t.evidence, e)
		t.seen[e.Key()] = true
	}
	return t
}

func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*t = *FromRecord(r)
	return nil
}
