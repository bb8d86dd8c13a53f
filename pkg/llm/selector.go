package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

var _ executor.Selector = (*Selector)(nil)

// Selector lets the model pick the next tool call. Any model failure, or a
// reply naming a tool that is not in the catalog, falls back to Fallback.
type Selector struct {
	Model    Completer
	Tools    Catalog
	Fallback executor.Selector
	Logger   *slog.Logger
}

type selectReply struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// Next implements executor.Selector.
func (s *Selector) Next(ctx context.Context, req executor.Request) (task.Call, bool, error) {
	if call, ok := executor.VerifyCall(req); ok {
		return call, true, nil
	}
	call, err := s.ask(ctx, req)
	if err == nil {
		return call, true, nil
	}
	if ctx.Err() != nil {
		return task.Call{}, false, ctx.Err()
	}
	s.logger().Debug("model selection rejected, using planned calls", "task", req.Task.ID, "error", err)
	return s.fallback().Next(ctx, req)
}

func (s *Selector) ask(ctx context.Context, req executor.Request) (task.Call, error) {
	var reply selectReply
	if err := completeJSON(ctx, s.Model, fmt.Sprintf(selectorSystem, describeTools(s.Tools)), s.prompt(req), &reply); err != nil {
		return task.Call{}, err
	}
	name := strings.TrimSpace(reply.ToolName)
	if name == "" || name == "none" {
		return task.Call{}, fmt.Errorf("model chose no tool")
	}
	if !s.known(name) {
		return task.Call{}, fmt.Errorf("model chose unknown tool %q", name)
	}
	return task.Call{Tool: name, Args: reply.Arguments}, nil
}

func (s *Selector) known(name string) bool {
	if s.Tools == nil {
		return false
	}
	for _, t := range s.Tools.List() {
		if t.Name() == name {
			return true
		}
	}
	return false
}

func (s *Selector) prompt(req executor.Request) string {
	t := req.Task
	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\nKind: %s\n", t.Goal, t.Kind)
	if t.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", t.Subject)
	}
	if missing := verify.MissingFields(t.Evidence(), t.Policy.RequiredFields); len(missing) > 0 {
		fmt.Fprintf(&b, "Still missing fields: %s\n", strings.Join(missing, ", "))
	}
	fmt.Fprintf(&b, "Evidence so far: %d records (need %d)\n", t.Len(), t.Policy.Normalize().MinEvidence)

	if len(t.Calls) > 0 {
		b.WriteString("\nPlanned calls:\n")
		for _, c := range t.Calls {
			fmt.Fprintf(&b, "- %s %s\n", c.Tool, argsJSON(c.Args))
		}
	}
	if len(req.History) > 0 {
		b.WriteString("\nCalls already made:\n")
		for _, a := range req.History {
			fmt.Fprintf(&b, "- %s %s added=%d", a.Call.Tool, argsJSON(a.Call.Args), a.Added)
			if a.Error != "" {
				fmt.Fprintf(&b, " error=%q", a.Error)
			}
			b.WriteByte('\n')
		}
	}
	for _, r := range req.Recent {
		fmt.Fprintf(&b, "\nCompleted task %q found:\n", r.Goal)
		b.WriteString(formatEvidence(r.Evidence, 5))
	}
	return b.String()
}

func (s *Selector) fallback() executor.Selector {
	if s.Fallback == nil {
		return executor.StaticSelector{}
	}
	return s.Fallback
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
