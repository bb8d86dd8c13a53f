package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

func reply(text string) Completer {
	return CompleterFunc(func(context.Context, string, string) (string, error) {
		return text, nil
	})
}

func failing(err error) Completer {
	return CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", err
	})
}

func catalog(names ...string) *tools.Registry {
	reg := tools.NewRegistry()
	for _, n := range names {
		reg.MustRegister(&tools.Func{
			ToolName: n,
			Desc:     n + " tool",
			Schema: tools.Schema{Type: "object", Properties: map[string]tools.SchemaField{
				"query": {Type: "string"},
			}, Required: []string{"query"}},
			Fn: func(context.Context, map[string]any) (tools.Result, error) { return tools.Found(), nil },
		})
	}
	return reg
}

func record(claim string) evidence.Evidence {
	return evidence.Evidence{Claim: claim, Entity: "Acme", SourceURL: "https://acme.com", Confidence: 0.8}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "ak" {
			t.Errorf("api key = %q", r.Header.Get("X-Api-Key"))
		}
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "claude-test" || req.MaxTokens != 256 || len(req.System) != 1 || req.System[0].Text != "sys" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content":     []map[string]any{{"type": "text", "text": "hello"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	c := NewAnthropic("ak", "claude-test", 256, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	got, err := c.Complete(context.Background(), "sys", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestAnthropicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewAnthropic("bad", "", 0, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
		wantErr        bool
	}{
		{"bare", `{"done": true}`, `{"done": true}`, false},
		{"fenced", "```json\n{\"a\": {\"b\": 1}}\n```", `{"a": {"b": 1}}`, false},
		{"prose", `Sure. {"x": 1} Hope that helps.`, `{"x": 1}`, false},
		{"none", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJudge(t *testing.T) {
	j := &Judge{Model: reply("```json\n{\"done\": false, \"reasoning\": \"results are about a different Acme\"}\n```")}
	ok, why, err := j.Judge(context.Background(), "Find Acme funding", []evidence.Evidence{record("Acme sells anvils")})
	if err != nil {
		t.Fatal(err)
	}
	if ok || !strings.Contains(why, "different Acme") {
		t.Errorf("ok=%v why=%q", ok, why)
	}
}

func TestJudgeNoEvidenceSkipsModel(t *testing.T) {
	called := false
	j := &Judge{Model: CompleterFunc(func(context.Context, string, string) (string, error) {
		called = true
		return `{"done": true}`, nil
	})}
	ok, _, err := j.Judge(context.Background(), "goal", nil)
	if err != nil || ok || called {
		t.Errorf("ok=%v err=%v called=%v", ok, err, called)
	}
}

func TestJudgeModelError(t *testing.T) {
	j := &Judge{Model: failing(errors.New("rate limited"))}
	if _, _, err := j.Judge(context.Background(), "goal", []evidence.Evidence{record("x")}); err == nil {
		t.Fatal("expected error")
	}
}

func TestJudgePromptCapsRecords(t *testing.T) {
	var records []evidence.Evidence
	for i := 0; i < 5; i++ {
		records = append(records, record("claim"))
	}
	p := (&Judge{MaxRecords: 2}).prompt("goal", records)
	if !strings.Contains(p, "... and 3 more") {
		t.Errorf("prompt = %s", p)
	}
}

func TestSelectorUsesModelChoice(t *testing.T) {
	var system, prompt string
	model := CompleterFunc(func(_ context.Context, s, p string) (string, error) {
		system, prompt = s, p
		return `{"tool_name": "web_search", "arguments": {"query": "acme series b"}}`, nil
	})
	sel := &Selector{Model: model, Tools: catalog("web_search", "search_news")}
	tk := task.New("signal-funding", "Find funding", task.KindSignal, task.Policy{RequiredFields: []string{"signal.funding"}},
		task.Call{Tool: "search_news", Args: map[string]any{"query": "acme"}})

	call, ok, err := sel.Next(context.Background(), executor.Request{
		Task:    tk,
		History: []executor.Attempt{{Call: tk.Calls[0], Added: 0}},
		Recent:  []task.Record{{Goal: "Find accounts", Evidence: []evidence.Evidence{record("Acme is a fintech")}}},
	})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if call.Tool != "web_search" || call.Args["query"] != "acme series b" {
		t.Errorf("call = %+v", call)
	}
	if !strings.Contains(system, "- web_search(query:string)") {
		t.Errorf("system prompt missing tool list: %s", system)
	}
	for _, want := range []string{"Still missing fields: signal.funding", "added=0", "Acme is a fintech"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSelectorFallback(t *testing.T) {
	tests := []struct {
		name  string
		model Completer
	}{
		{"model error", failing(errors.New("boom"))},
		{"unknown tool", reply(`{"tool_name": "scrape_everything", "arguments": {}}`)},
		{"none", reply(`{"tool_name": "none", "arguments": {}}`)},
		{"garbage", reply("I would search the web")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := &Selector{Model: tt.model, Tools: catalog("search_news")}
			tk := task.New("t", "goal", task.KindResearch, task.Policy{}, task.Call{Tool: "search_news", Args: map[string]any{"query": "q"}})
			call, ok, err := sel.Next(context.Background(), executor.Request{Task: tk})
			if err != nil || !ok || call.Tool != "search_news" {
				t.Errorf("call=%+v ok=%v err=%v", call, ok, err)
			}
		})
	}
}

func TestSelectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sel := &Selector{Model: failing(context.Canceled), Tools: catalog("search_news")}
	tk := task.New("t", "goal", task.KindResearch, task.Policy{}, task.Call{Tool: "search_news"})
	if _, _, err := sel.Next(ctx, executor.Request{Task: tk}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func leadSpec() workflow.Spec {
	return workflow.Spec{
		Name: "leads",
		Goal: workflow.GoalLeadList,
		ICP:  workflow.ICP{Industries: []string{"fintech"}, Geo: []string{"NYC"}},
	}
}

func TestPlannerBuildsTasks(t *testing.T) {
	model := reply(`{"tasks": [
		{"id": "accounts", "goal": "Find fintech companies in NYC", "kind": "accounts", "required_fields": ["company"], "min_evidence": 3,
		 "calls": [{"tool": "search_companies_by_criteria", "args": {"industry": "fintech"}}, {"tool": "made_up", "args": {}}]},
		{"id": "accounts", "goal": "Find hiring signals", "kind": "signal", "required_fields": ["signal.hiring"],
		 "calls": [{"tool": "find_hiring_signals", "args": {"industry": "fintech"}}]},
		{"id": "empty", "goal": "Nothing callable", "kind": "research", "calls": [{"tool": "made_up"}]},
		{"goal": "Odd kind", "kind": "vibes", "calls": [{"tool": "web_search", "args": {"query": "x"}}]}
	]}`)
	p := &Planner{
		Model:    model,
		Tools:    catalog("search_companies_by_criteria", "find_hiring_signals", "web_search"),
		Fallback: workflow.StaticPlanner{Policy: task.Policy{MinEvidence: 1, MinConfidence: 0.3}},
	}
	spec := leadSpec()
	conf := 0.6
	spec.Constraints.MinSignalConfidence = &conf

	tasks, err := p.Plan(context.Background(), spec, profile.Example())
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	acc := tasks[0]
	if acc.ID != "accounts" || len(acc.Calls) != 1 || acc.Policy.MinEvidence != 3 {
		t.Errorf("accounts = %+v", acc.Record())
	}
	sig := tasks[1]
	if sig.ID != "task-2" || sig.Policy.MinConfidence != 0.6 {
		t.Errorf("signal = %+v", sig.Record())
	}
	if tasks[2].Kind != task.KindResearch || tasks[2].ID != "task-4" {
		t.Errorf("odd kind = %+v", tasks[2].Record())
	}
	for _, tk := range tasks {
		if tk.Status() != task.StatusPending {
			t.Errorf("%s status = %s", tk.ID, tk.Status())
		}
	}
}

func TestPlannerFallsBackToStatic(t *testing.T) {
	tests := []struct {
		name  string
		model Completer
	}{
		{"error", failing(errors.New("down"))},
		{"empty", reply(`{"tasks": []}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Planner{Model: tt.model, Tools: catalog("search_companies_by_criteria")}
			tasks, err := p.Plan(context.Background(), leadSpec(), nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(tasks) == 0 || tasks[0].ID != "accounts" {
				t.Errorf("tasks = %v", tasks)
			}
		})
	}
}

func TestPlannerRejectsInvalidWorkflow(t *testing.T) {
	p := &Planner{Model: reply(`{"tasks": []}`)}
	if _, err := p.Plan(context.Background(), workflow.Spec{Name: "bad"}, nil); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSummarizer(t *testing.T) {
	var prompt string
	s := &Summarizer{Model: CompleterFunc(func(_ context.Context, _, p string) (string, error) {
		prompt = p
		return "  ## Summary\nTwo strong leads.\n", nil
	}), MaxLeads: 1}
	r := synth.Report{
		Goal:    "lead_list",
		Done:    2,
		Columns: []string{"company", "email"},
		Leads: []synth.Lead{
			{Entity: "Acme", Values: map[string]string{"company": "Acme", "email": "jo@acme.com"}},
			{Entity: "Beta", Values: map[string]string{"company": "Beta", "email": "unknown"}},
		},
	}
	got, err := s.Summarize(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if got != "## Summary\nTwo strong leads." {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(prompt, "Acme | jo@acme.com") || !strings.Contains(prompt, "... and 1 more") {
		t.Errorf("prompt = %s", prompt)
	}
}
