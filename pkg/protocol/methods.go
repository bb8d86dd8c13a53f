package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
	"github.com/abdazzam00/biz-dev-agent/pkg/store"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

// Service is what the methods need from a configured agent.
type Service interface {
	Plan(ctx context.Context, spec workflow.Spec) ([]*task.Task, error)
	Execute(ctx context.Context, name string, spec workflow.Spec, tasks []*task.Task) (*agent.Result, error)
	Runs() ([]store.Summary, error)
	Archived(id string) (store.Archive, synth.Report, error)
}

// RegisterMethods registers every supported method on h.
func RegisterMethods(h *Handler, svc Service, reg *tools.Registry) {
	h.Register(MethodToolsList, func(context.Context, json.RawMessage) (any, *Error) {
		list := reg.List()
		infos := make([]ToolInfo, len(list))
		for i, t := range list {
			infos[i] = toolInfo(t)
		}
		return infos, nil
	})

	h.Register(MethodToolsDescribe, func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, err := ParseParams[ToolsDescribeParams](params)
		if err != nil {
			return nil, err
		}
		t, resolveErr := reg.Resolve(p.Name)
		if resolveErr != nil {
			return nil, &Error{Code: CodeToolNotFound, Message: resolveErr.Error()}
		}
		return ToolDetail{ToolInfo: toolInfo(t), InputSchema: t.InputSchema()}, nil
	})

	h.Register(MethodWorkflowValidate, func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, err := ParseParams[WorkflowParams](params)
		if err != nil {
			return nil, err
		}
		spec, loadErr := loadWorkflow(p)
		if loadErr != nil {
			return nil, loadErr
		}
		vr := workflow.Validate(spec)
		return ValidateResult{Valid: vr.Valid(), Name: spec.Name, Goal: spec.Goal, Errors: vr.Errors}, nil
	})

	h.Register(MethodWorkflowPlan, func(ctx context.Context, params json.RawMessage) (any, *Error) {
		p, err := ParseParams[WorkflowParams](params)
		if err != nil {
			return nil, err
		}
		_, tasks, planErr := plan(ctx, svc, p)
		if planErr != nil {
			return nil, planErr
		}
		return PlanResult{Steps: workflow.Preview(tasks)}, nil
	})

	h.Register(MethodWorkflowRun, func(ctx context.Context, params json.RawMessage) (any, *Error) {
		p, err := ParseParams[WorkflowRunParams](params)
		if err != nil {
			return nil, err
		}
		spec, tasks, planErr := plan(ctx, svc, p.WorkflowParams)
		if planErr != nil {
			return nil, planErr
		}
		res, runErr := svc.Execute(ctx, p.Path, spec, tasks)
		if res == nil {
			return nil, &Error{Code: CodeRunFailed, Message: runErr.Error()}
		}
		format := p.Format
		if format == "" {
			format = spec.Deliverable.OutputFormat()
		}
		out, rpcErr := runResult(res.Report, format)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out.Outcome = &res.Outcome
		out.Scratchpad = res.Scratchpad
		if runErr != nil {
			return nil, &Error{Code: CodeRunCancelled, Message: runErr.Error(), Data: out}
		}
		return out, nil
	})

	h.Register(MethodRunsList, func(context.Context, json.RawMessage) (any, *Error) {
		runs, err := svc.Runs()
		if err != nil {
			return nil, storeError(err)
		}
		if runs == nil {
			runs = []store.Summary{}
		}
		return runs, nil
	})

	h.Register(MethodRunsGet, func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, err := ParseParams[RunsGetParams](params)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = "latest"
		}
		archive, report, getErr := svc.Archived(p.ID)
		if getErr != nil {
			return nil, storeError(getErr)
		}
		out, rpcErr := runResult(report, p.Format)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out.Outcome = &archive.Outcome
		out.Scratchpad = archive.Scratchpad
		return out, nil
	})
}

func toolInfo(t tools.Tool) ToolInfo {
	return ToolInfo{Name: t.Name(), Description: t.Description(), Credentials: t.RequiredCredentials()}
}

func loadWorkflow(p WorkflowParams) (workflow.Spec, *Error) {
	var (
		spec workflow.Spec
		err  error
	)
	switch {
	case p.Workflow != "":
		spec, err = workflow.Parse([]byte(p.Workflow), p.Params)
	case p.Path != "":
		spec, err = workflow.Load(p.Path, p.Params)
	default:
		return spec, &Error{Code: CodeInvalidParams, Message: "path or workflow is required"}
	}
	if err != nil {
		return spec, &Error{Code: CodeWorkflowInvalid, Message: err.Error()}
	}
	return spec, nil
}

func plan(ctx context.Context, svc Service, p WorkflowParams) (workflow.Spec, []*task.Task, *Error) {
	spec, err := loadWorkflow(p)
	if err != nil {
		return spec, nil, err
	}
	if vr := workflow.Validate(spec); !vr.Valid() {
		return spec, nil, &Error{Code: CodeWorkflowInvalid, Message: vr.Error(), Data: vr.Errors}
	}
	tasks, planErr := svc.Plan(ctx, spec)
	if planErr != nil {
		return spec, nil, &Error{Code: CodeRunFailed, Message: planErr.Error()}
	}
	return spec, tasks, nil
}

func runResult(r synth.Report, format string) (RunResult, *Error) {
	if format == "" {
		format = synth.FormatJSON
	}
	rendered, err := agent.Render(r, format)
	if err != nil {
		return RunResult{}, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return RunResult{RunID: r.RunID, Summary: r.Summary(), Report: r, Format: format, Output: string(rendered)}, nil
}

func storeError(err error) *Error {
	switch {
	case errors.Is(err, agent.ErrNoStore):
		return &Error{Code: CodeNoStore, Message: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Code: CodeRunNotFound, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}
