package executor

import (
	"context"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

// Attempt is one previous tool call made for a task.
type Attempt struct {
	Call  task.Call `json:"call"`
	Added int       `json:"added"`
	Error string    `json:"error,omitempty"`
}

// Request is what a Selector sees when choosing the next call.
type Request struct {
	Task    *task.Task
	History []Attempt
	// Recent holds snapshots of the most recently completed tasks of the run.
	Recent []task.Record
}

// Selector chooses the next tool call for a task. ok=false means no tool
// can make progress on it.
type Selector interface {
	Next(ctx context.Context, req Request) (call task.Call, ok bool, err error)
}

// VerifyEmailTool is chained by StaticSelector on unchecked addresses.
const VerifyEmailTool = "verify_email"

// StaticSelector walks a task's planned calls in order. Once they are used
// up it repeats the last one, which lets loop detection end the task if that
// call stops producing evidence. When the task's policy requires a verified
// email, each address found is checked with verify_email before the next
// planned call.
type StaticSelector struct{}

func (StaticSelector) Next(_ context.Context, req Request) (task.Call, bool, error) {
	if call, ok := VerifyCall(req); ok {
		return call, true, nil
	}
	calls := req.Task.Calls
	if len(calls) == 0 {
		return task.Call{}, false, nil
	}
	i := 0
	for _, a := range req.History {
		if a.Call.Tool != VerifyEmailTool {
			i++
		}
	}
	if i >= len(calls) {
		i = len(calls) - 1
	}
	return calls[i], true, nil
}

// VerifyCall returns a verify_email call for the first address that has
// neither a status record nor an earlier verify_email attempt.
func VerifyCall(req Request) (task.Call, bool) {
	if !req.Task.Policy.VerifiedEmail {
		return task.Call{}, false
	}
	tried := make(map[string]bool)
	for _, a := range req.History {
		if a.Call.Tool == VerifyEmailTool {
			if addr, ok := a.Call.Args["email"].(string); ok {
				tried[strings.ToLower(addr)] = true
			}
		}
	}
	for _, e := range verify.UnverifiedEmails(req.Task.Evidence()) {
		addr := strings.ToLower(e.Value)
		if tried[addr] {
			continue
		}
		args := map[string]any{"email": addr, "source_url": e.SourceURL}
		if e.Entity != "" {
			args["entity"] = e.Entity
		}
		return task.Call{Tool: VerifyEmailTool, Args: args}, true
	}
	return task.Call{}, false
}
