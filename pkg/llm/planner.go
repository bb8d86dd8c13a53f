package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

var _ workflow.Planner = (*Planner)(nil)

// Planner asks the model for a task plan. Calls to unregistered tools are
// dropped, tasks left without calls are dropped, and an empty or failed
// plan falls back to the static planner.
type Planner struct {
	Model    Completer
	Tools    Catalog
	Fallback workflow.StaticPlanner
	Logger   *slog.Logger
}

type planReply struct {
	Tasks []plannedTask `json:"tasks"`
}

type plannedTask struct {
	ID             string      `json:"id"`
	Goal           string      `json:"goal"`
	Kind           task.Kind   `json:"kind"`
	Subject        string      `json:"subject"`
	RequiredFields []string    `json:"required_fields"`
	MinEvidence    int         `json:"min_evidence"`
	Calls          []task.Call `json:"calls"`
}

// Plan implements workflow.Planner.
func (p *Planner) Plan(ctx context.Context, spec workflow.Spec, prof *profile.Profile) ([]*task.Task, error) {
	if vr := workflow.Validate(spec); !vr.Valid() {
		return nil, fmt.Errorf("invalid workflow: %s", vr.Error())
	}
	tasks, err := p.ask(ctx, spec, prof)
	if err == nil && len(tasks) > 0 {
		return tasks, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil {
		err = fmt.Errorf("model returned no usable tasks")
	}
	p.logger().Warn("model plan rejected, using static plan", "error", err)
	return p.Fallback.Plan(ctx, spec, prof)
}

func (p *Planner) ask(ctx context.Context, spec workflow.Spec, prof *profile.Profile) ([]*task.Task, error) {
	doc, err := workflow.Marshal(spec)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if summary := prof.Summary(); summary != "" {
		fmt.Fprintf(&b, "Business profile: %s\nTarget titles: %s\n\n", summary, strings.Join(prof.Titles(), ", "))
	}
	fmt.Fprintf(&b, "Workflow:\n%s\nPlan the research tasks.", doc)

	var reply planReply
	if err := completeJSON(ctx, p.Model, fmt.Sprintf(plannerSystem, describeTools(p.Tools)), b.String(), &reply); err != nil {
		return nil, err
	}
	return p.build(spec, reply.Tasks), nil
}

func (p *Planner) build(spec workflow.Spec, planned []plannedTask) []*task.Task {
	known := make(map[string]bool)
	if p.Tools != nil {
		for _, t := range p.Tools.List() {
			known[t.Name()] = true
		}
	}
	ids := make(map[string]bool)

	var out []*task.Task
	for i, pt := range planned {
		var calls []task.Call
		for _, c := range pt.Calls {
			if known[c.Tool] {
				calls = append(calls, c)
			}
		}
		if len(calls) == 0 || strings.TrimSpace(pt.Goal) == "" {
			continue
		}
		id := pt.ID
		if id == "" || ids[id] {
			id = fmt.Sprintf("task-%d", i+1)
		}
		ids[id] = true

		policy := p.Fallback.Policy
		policy.RequiredFields = pt.RequiredFields
		policy.MinEvidence = max(policy.MinEvidence, pt.MinEvidence)
		kind := pt.Kind
		switch kind {
		case task.KindAccounts, task.KindSignal, task.KindContacts, task.KindEnrichment, task.KindResearch:
		default:
			kind = task.KindResearch
		}
		if kind == task.KindContacts && spec.Constraints.VerifiedEmail() {
			policy.VerifiedEmail = true
		}
		if kind == task.KindSignal {
			policy.MinConfidence = max(policy.MinConfidence, spec.Constraints.SignalConfidence())
		}

		t := task.New(id, pt.Goal, kind, policy, calls...)
		t.Subject = pt.Subject
		out = append(out, t)
	}
	return out
}

func (p *Planner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}
