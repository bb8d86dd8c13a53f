package protocol

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/store"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

const leadWorkflow = `
name: nyc-fintech
goal: lead_list
icp:
  industries: [fintech]
  geo: ["{{region}}"]
params:
  - name: region
    default: NYC
`

func newServer(t *testing.T) *Handler {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Func{
		ToolName:    workflow.ToolSearchCompanies,
		Desc:        "stub company search",
		Credentials: []string{"SERPER_API_KEY"},
		Schema: tools.Schema{Type: "object", Properties: map[string]tools.SchemaField{
			"industry":    {Type: "string"},
			"location":    {Type: "string"},
			"num_results": {Type: "integer"},
		}, Required: []string{"industry"}},
		Fn: func(_ context.Context, args map[string]any) (tools.Result, error) {
			var out []evidence.Evidence
			for _, name := range []string{"Paywise", "Ledgerly", "Coinrail"} {
				out = append(out, evidence.Evidence{
					Claim: name + " is a fintech in " + args["location"].(string), Field: "company",
					Entity: name, Value: name, SourceURL: "https://" + strings.ToLower(name) + ".example.com", Confidence: 0.8,
				})
			}
			return tools.Found(out...), nil
		},
	})

	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	h := NewHandler()
	RegisterMethods(h, &agent.Agent{Tools: reg, Store: st, NewID: func() string { return "run-1" }}, reg)
	return h
}

func call(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return h.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func TestRegisterMethods(t *testing.T) {
	h := newServer(t)
	want := []string{MethodRunsGet, MethodRunsList, MethodToolsDescribe, MethodToolsList,
		MethodWorkflowPlan, MethodWorkflowRun, MethodWorkflowValidate}
	got := h.Methods()
	if len(got) != len(want) {
		t.Fatalf("methods = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("methods[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestToolsMethods(t *testing.T) {
	h := newServer(t)

	resp := call(t, h, MethodToolsList, nil)
	infos, ok := resp.Result.([]ToolInfo)
	if !ok || len(infos) != 1 || infos[0].Credentials[0] != "SERPER_API_KEY" {
		t.Fatalf("list = %+v", resp)
	}

	resp = call(t, h, MethodToolsDescribe, ToolsDescribeParams{Name: workflow.ToolSearchCompanies})
	detail, ok := resp.Result.(ToolDetail)
	if !ok || detail.InputSchema.Required[0] != "industry" {
		t.Errorf("describe = %+v", resp)
	}

	resp = call(t, h, MethodToolsDescribe, ToolsDescribeParams{Name: "nope"})
	if resp.Error == nil || resp.Error.Code != CodeToolNotFound {
		t.Errorf("describe unknown = %+v", resp)
	}
}

func TestWorkflowValidate(t *testing.T) {
	h := newServer(t)

	resp := call(t, h, MethodWorkflowValidate, WorkflowParams{Workflow: leadWorkflow})
	vr, ok := resp.Result.(ValidateResult)
	if !ok || !vr.Valid || vr.Goal != workflow.GoalLeadList {
		t.Errorf("valid = %+v", resp)
	}

	resp = call(t, h, MethodWorkflowValidate, WorkflowParams{Workflow: "name: x\ngoal: world_peace\n"})
	vr, ok = resp.Result.(ValidateResult)
	if !ok || vr.Valid || len(vr.Errors) == 0 {
		t.Errorf("invalid = %+v", resp)
	}

	resp = call(t, h, MethodWorkflowValidate, WorkflowParams{})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("empty = %+v", resp)
	}
}

func TestWorkflowPlan(t *testing.T) {
	h := newServer(t)
	resp := call(t, h, MethodWorkflowPlan, WorkflowParams{Workflow: leadWorkflow, Params: map[string]string{"region": "SF"}})
	pr, ok := resp.Result.(PlanResult)
	if !ok || len(pr.Steps) == 0 || pr.Steps[0].TaskID != "accounts" {
		t.Fatalf("plan = %+v", resp)
	}
	if !strings.Contains(pr.Steps[0].Goal, "SF") {
		t.Errorf("goal = %q", pr.Steps[0].Goal)
	}
}

func TestWorkflowRunAndRuns(t *testing.T) {
	h := newServer(t)

	resp := call(t, h, MethodWorkflowRun, WorkflowRunParams{WorkflowParams: WorkflowParams{Workflow: leadWorkflow}, Format: "csv"})
	if resp.Error != nil {
		t.Fatalf("run error: %+v", resp.Error)
	}
	rr := resp.Result.(RunResult)
	if rr.RunID != "run-1" || rr.Format != "csv" || !strings.Contains(rr.Output, "Paywise") {
		t.Errorf("run = %+v", rr)
	}
	if rr.Outcome == nil || rr.Outcome.Steps == 0 {
		t.Errorf("outcome = %+v", rr.Outcome)
	}

	resp = call(t, h, MethodRunsList, nil)
	runs, ok := resp.Result.([]store.Summary)
	if !ok || len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("runs = %+v", resp)
	}

	resp = call(t, h, MethodRunsGet, RunsGetParams{Format: "markdown"})
	got, ok := resp.Result.(RunResult)
	if !ok || got.RunID != "run-1" || !strings.HasPrefix(got.Output, "# lead_list report") {
		t.Errorf("get = %+v", resp)
	}

	resp = call(t, h, MethodRunsGet, RunsGetParams{ID: "missing"})
	if resp.Error == nil || resp.Error.Code != CodeRunNotFound {
		t.Errorf("get missing = %+v", resp)
	}
}
