package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Checker evaluates one aspect of a task's completion policy.
type Checker func(ctx context.Context, t *task.Task) Check

// Built-in checker names.
const (
	CheckMinEvidence    = "min_evidence"
	CheckMinConfidence  = "min_confidence"
	CheckRequiredFields = "required_fields"
	CheckVerifiedEmail  = "verified_email"
	CheckLLMJudge       = "llm_judge"
)

// FieldEmailStatus is the field verify_email reports an address's status in.
const FieldEmailStatus = "email_status"

// rejectedEmail lists email_status values that do not count as verified.
var rejectedEmail = map[string]bool{"invalid": true, "disposable": true}

func builtinCheckers() map[string]Checker {
	return map[string]Checker{
		CheckMinEvidence:    checkMinEvidence,
		CheckMinConfidence:  checkMinConfidence,
		CheckRequiredFields: checkRequiredFields,
		CheckVerifiedEmail:  checkVerifiedEmail,
	}
}

func checkMinEvidence(_ context.Context, t *task.Task) Check {
	want := t.Policy.Normalize().MinEvidence
	got := t.Len()
	c := Check{Name: CheckMinEvidence, Passed: got >= want, Actual: got}
	if !c.Passed {
		c.Message = fmt.Sprintf("have %d sourced records, need %d", got, want)
	}
	return c
}

func checkMinConfidence(_ context.Context, t *task.Task) Check {
	threshold := t.Policy.Normalize().MinConfidence
	best := -1.0
	for _, e := range t.Evidence() {
		if e.Confidence > best {
			best = e.Confidence
		}
	}
	c := Check{Name: CheckMinConfidence, Passed: best >= threshold, Actual: best}
	if best < 0 {
		c.Actual = nil
		c.Message = "no evidence collected"
	} else if !c.Passed {
		c.Message = fmt.Sprintf("best confidence %.2f below %.2f", best, threshold)
	}
	return c
}

func checkRequiredFields(_ context.Context, t *task.Task) Check {
	missing := MissingFields(t.Evidence(), t.Policy.RequiredFields)
	c := Check{Name: CheckRequiredFields, Passed: len(missing) == 0}
	if !c.Passed {
		c.Actual = missing
		c.Message = "missing " + strings.Join(missing, ", ")
	}
	return c
}

// checkVerifiedEmail passes when the policy does not ask for it, or when an
// email record has an accepted email_status for the same address.
func checkVerifiedEmail(_ context.Context, t *task.Task) Check {
	c := Check{Name: CheckVerifiedEmail, Passed: true}
	if !t.Policy.VerifiedEmail {
		return c
	}
	records := t.Evidence()
	if len(VerifiedEmails(records)) > 0 {
		return c
	}
	c.Passed = false
	if len(UnverifiedEmails(records)) > 0 {
		c.Message = "email not yet verified"
	} else {
		c.Message = "no verified email"
	}
	return c
}

// VerifiedEmails returns the addresses with an accepted email_status.
func VerifiedEmails(records []evidence.Evidence) []string {
	status := emailStatus(records)
	var out []string
	seen := make(map[string]bool)
	for _, e := range records {
		addr := strings.ToLower(e.Value)
		if e.Field != "email" || addr == "" || seen[addr] {
			continue
		}
		if s, ok := status[addr]; ok && !rejectedEmail[s] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}

// UnverifiedEmails returns email records whose address has no email_status
// yet, one per address, in collection order.
func UnverifiedEmails(records []evidence.Evidence) []evidence.Evidence {
	status := emailStatus(records)
	var out []evidence.Evidence
	seen := make(map[string]bool)
	for _, e := range records {
		addr := strings.ToLower(e.Value)
		if e.Field != "email" || addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		if _, ok := status[addr]; !ok {
			out = append(out, e)
		}
	}
	return out
}

// emailStatus maps addresses to their last reported status. A status
// record carries the checked address as its snippet.
func emailStatus(records []evidence.Evidence) map[string]string {
	out := make(map[string]string)
	for _, e := range records {
		if e.Field != FieldEmailStatus {
			continue
		}
		if addr := strings.ToLower(strings.TrimSpace(e.Snippet)); addr != "" {
			out[addr] = e.Value
		}
	}
	return out
}

// MissingFields returns the required fields no record populates.
func MissingFields(records []evidence.Evidence, required []string) []string {
	have := make(map[string]bool)
	for _, e := range records {
		if e.Field != "" && e.Value != "" {
			have[e.Field] = true
		}
	}
	var missing []string
	for _, f := range required {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// Judge asks a model whether collected evidence answers a task's goal.
type Judge interface {
	Judge(ctx context.Context, goal string, records []evidence.Evidence) (ok bool, reasoning string, err error)
}

func judgeChecker(j Judge) Checker {
	return func(ctx context.Context, t *task.Task) Check {
		ok, reasoning, err := j.Judge(ctx, t.Goal, t.Evidence())
		if err != nil {
			return Check{Name: CheckLLMJudge, Passed: true, Message: "llm_judge: skipped (" + err.Error() + ")"}
		}
		return Check{Name: CheckLLMJudge, Passed: ok, Message: reasoning}
	}
}
