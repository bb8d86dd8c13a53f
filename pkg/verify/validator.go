package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Option configures a Validator.
type Option func(*Validator)

// WithFailFast stops evaluation on the first failed check.
func WithFailFast(ff bool) Option {
	return func(v *Validator) {
		v.failFast = ff
	}
}

// WithChecker adds or replaces a named checker and appends it to the order.
func WithChecker(name string, c Checker) Option {
	return func(v *Validator) {
		if _, exists := v.checkers[name]; !exists {
			v.order = append(v.order, name)
		}
		v.checkers[name] = c
	}
}

// WithJudge enables the llm_judge checker. It only runs once every
// structural check has passed.
func WithJudge(j Judge) Option {
	return func(v *Validator) {
		if j != nil {
			WithChecker(CheckLLMJudge, judgeChecker(j))(v)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// Validator evaluates tasks against their completion policy.
type Validator struct {
	checkers map[string]Checker
	order    []string
	failFast bool
	now      func() time.Time
}

// NewValidator creates a validator with the built-in checkers.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		checkers: builtinCheckers(),
		order:    []string{CheckMinEvidence, CheckMinConfidence, CheckRequiredFields, CheckVerifiedEmail},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Checkers returns the checker names in evaluation order.
func (v *Validator) Checkers() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Evaluate decides whether t is done, needs more evidence, or has used up
// its per-task step budget.
func (v *Validator) Evaluate(ctx context.Context, t *task.Task, maxStepsPerTask int) Decision {
	d := Decision{
		TaskID:    t.ID,
		Timestamp: v.now(),
		Missing:   MissingFields(t.Evidence(), t.Policy.RequiredFields),
		Conflicts: Conflicts(t.Evidence()),
	}

	var failures []string
	for _, name := range v.order {
		if name == CheckLLMJudge && len(failures) > 0 {
			continue
		}
		c := v.checkers[name](ctx, t)
		d.Checks = append(d.Checks, c)
		if !c.Passed {
			failures = append(failures, c.Message)
			if v.failFast {
				break
			}
		}
	}

	switch {
	case len(failures) == 0:
		d.Verdict = VerdictDone
		d.Message = fmt.Sprintf("%d sourced records satisfy policy", t.Len())
	case maxStepsPerTask > 0 && t.Steps() >= maxStepsPerTask:
		d.Verdict = VerdictFailed
		d.Reason = task.ReasonBudgetExhausted
		d.Message = fmt.Sprintf("per-task step limit %d reached: %s", maxStepsPerTask, strings.Join(failures, "; "))
	default:
		d.Verdict = VerdictContinue
		d.Message = strings.Join(failures, "; ")
	}
	return d
}

// Apply performs the status transition a decision calls for.
func Apply(t *task.Task, d Decision) error {
	switch d.Verdict {
	case VerdictDone:
		return t.Complete()
	case VerdictFailed:
		return t.Fail(d.Reason, d.Message)
	default:
		return nil
	}
}
