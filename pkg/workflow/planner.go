package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Planner turns a workflow into research tasks.
type Planner interface {
	Plan(ctx context.Context, spec Spec, p *profile.Profile) ([]*task.Task, error)
}

// ToolLister reports which tools can be called. It keeps this package free
// of the tool registry.
type ToolLister interface {
	Has(name string) bool
}

// Tool names the static planner emits calls for.
const (
	ToolWebSearch        = "web_search"
	ToolSearchCompanies  = "search_companies_by_criteria"
	ToolHiringSignals    = "find_hiring_signals"
	ToolFundingSignals   = "find_funding_signals"
	ToolCompanyContacts  = "find_company_contacts"
	ToolSearchNews       = "search_news"
	ToolEnrichCompany    = "enrich_company"
	ToolGitHubOrg        = "github_org_profile"
	ToolPerplexitySearch = "perplexity_search"
)

// StaticPlanner derives tasks from the ICP, signals, profile and constraints
// without a model.
type StaticPlanner struct {
	// Tools, when set, drops calls to tools that are not registered.
	Tools ToolLister
	// Policy is the base completion policy applied to every task.
	Policy task.Policy
	// MaxCallsPerTask caps the planned calls of a task. Zero means 4.
	MaxCallsPerTask int
}

// Plan implements Planner. The returned tasks are pending and ordered:
// accounts, enrichment, signals, contacts.
func (sp StaticPlanner) Plan(_ context.Context, spec Spec, p *profile.Profile) ([]*task.Task, error) {
	if vr := Validate(spec); !vr.Valid() {
		return nil, fmt.Errorf("invalid workflow: %s", vr.Error())
	}

	var tasks []*task.Task
	add := func(t *task.Task) {
		if t == nil {
			return
		}
		t.Calls = sp.filter(t.Calls)
		tasks = append(tasks, t)
	}

	if spec.Goal == GoalCompetitorMoves {
		competitors := spec.Competitors
		if len(competitors) == 0 && p != nil {
			competitors = p.Competitors
		}
		if len(competitors) == 0 {
			return nil, fmt.Errorf("competitor_moves needs competitors in the workflow or the business profile")
		}
		for _, c := range competitors {
			for _, sig := range signalsOrNews(spec.Signals) {
				add(sp.signalTask(spec, sig, c))
			}
		}
		return tasks, nil
	}

	if len(spec.Accounts) == 0 {
		add(sp.accountsTask(spec))
		for _, sig := range spec.Signals {
			add(sp.signalTask(spec, sig, ""))
		}
		if spec.Goal == GoalAccountBriefs {
			add(sp.enrichmentTask(spec, ""))
		}
		add(sp.contactsTask(spec, p, ""))
		return tasks, nil
	}

	for _, company := range spec.Accounts {
		if spec.Goal == GoalAccountBriefs {
			add(sp.enrichmentTask(spec, company))
		}
		for _, sig := range spec.Signals {
			add(sp.signalTask(spec, sig, company))
		}
		add(sp.contactsTask(spec, p, company))
	}
	return tasks, nil
}

func (sp StaticPlanner) maxCalls() int {
	if sp.MaxCallsPerTask <= 0 {
		return 4
	}
	return sp.MaxCallsPerTask
}

func (sp StaticPlanner) filter(calls []task.Call) []task.Call {
	if sp.Tools == nil {
		return calls
	}
	var out []task.Call
	for _, c := range calls {
		if sp.Tools.Has(c.Tool) {
			out = append(out, c)
		}
	}
	return out
}

func (sp StaticPlanner) newTask(id, goal string, kind task.Kind, subject string, policy task.Policy, calls []task.Call) *task.Task {
	if len(calls) > sp.maxCalls() {
		calls = calls[:sp.maxCalls()]
	}
	t := task.New(id, goal, kind, policy, calls...)
	t.Subject = subject
	return t
}

func (sp StaticPlanner) accountsTask(spec Spec) *task.Task {
	target := spec.Constraints.Accounts()
	num := min(target, 10)

	var calls []task.Call
	for _, industry := range nonEmpty(spec.ICP.Industries) {
		for _, geo := range nonEmpty(spec.ICP.Geo) {
			args := map[string]any{
				"industry":    industry,
				"location":    geo,
				"num_results": num,
			}
			if len(spec.ICP.Stage) > 0 {
				args["stage"] = strings.Join(spec.ICP.Stage, " ")
			}
			if cs := spec.ICP.CompanySize; cs != nil {
				if cs.Min > 0 {
					args["min_employees"] = cs.Min
				}
				if cs.Max > 0 {
					args["max_employees"] = cs.Max
				}
			}
			if len(spec.ICP.TechStack) > 0 {
				args["keywords"] = strings.Join(spec.ICP.TechStack, " ")
			}
			calls = append(calls, task.Call{Tool: ToolSearchCompanies, Args: args})
		}
	}

	policy := sp.Policy
	policy.MinEvidence = max(policy.MinEvidence, min(target, 3))
	policy.RequiredFields = appendUnique(policy.RequiredFields, "company")

	goal := fmt.Sprintf("Find %d %s companies in %s",
		target, strings.Join(spec.ICP.Industries, "/"), strings.Join(spec.ICP.Geo, ", "))
	return sp.newTask("accounts", goal, task.KindAccounts, "", policy, calls)
}

func (sp StaticPlanner) signalTask(spec Spec, sig Signal, company string) *task.Task {
	industry := first(spec.ICP.Industries)
	geo := first(spec.ICP.Geo)
	days := sig.WithinDays

	var calls []task.Call
	switch sig.Type {
	case SignalHiring:
		args := map[string]any{"role": orDefault(sig.Query, "sales"), "location": geo}
		setSubject(args, company, industry)
		calls = append(calls, task.Call{Tool: ToolHiringSignals, Args: args})
	case SignalFunding:
		args := map[string]any{}
		setSubject(args, company, industry)
		if days > 0 {
			args["days"] = days
		}
		calls = append(calls, task.Call{Tool: ToolFundingSignals, Args: args})
	case SignalTechStack:
		if company != "" {
			calls = append(calls, task.Call{Tool: ToolGitHubOrg, Args: map[string]any{"org": slug(company)}})
		}
		q := strings.TrimSpace(orDefault(company, industry) + " " + orDefault(sig.Query, "tech stack engineering blog"))
		args := map[string]any{"query": q, "field": "signal.tech_stack"}
		if company != "" {
			args["entity"] = company
		}
		calls = append(calls, task.Call{Tool: ToolWebSearch, Args: args})
	default:
		q := strings.TrimSpace(orDefault(sig.Query, signalQuery(sig.Type)))
		args := map[string]any{"topic": q, "signal": string(sig.Type)}
		setSubject(args, company, industry)
		if days > 0 {
			args["days"] = days
		}
		calls = append(calls, task.Call{Tool: ToolSearchNews, Args: args})
		pargs := map[string]any{
			"query": strings.TrimSpace(fmt.Sprintf("%s %s %s", orDefault(company, industry), q, withinLabel(days))),
			"field": "signal." + string(sig.Type),
		}
		if company != "" {
			pargs["entity"] = company
		}
		calls = append(calls, task.Call{Tool: ToolPerplexitySearch, Args: pargs})
	}

	policy := sp.Policy
	policy.MinConfidence = spec.Constraints.SignalConfidence()
	policy.RequiredFields = appendUnique(policy.RequiredFields, "signal."+string(sig.Type))

	subject := orDefault(company, industry)
	goal := fmt.Sprintf("Find %s signals for %s", strings.ReplaceAll(string(sig.Type), "_", " "), subject)
	if days > 0 {
		goal += fmt.Sprintf(" within the last %d days", days)
	}
	id := "signal-" + slug(string(sig.Type))
	if company != "" {
		id += "-" + slug(company)
	}
	return sp.newTask(id, goal, task.KindSignal, company, policy, calls)
}

func (sp StaticPlanner) contactsTask(spec Spec, p *profile.Profile, company string) *task.Task {
	var calls []task.Call
	for _, title := range p.Titles() {
		args := map[string]any{"title": title}
		if company != "" {
			args["company"] = company
		} else {
			args["industry"] = first(spec.ICP.Industries)
			args["location"] = first(spec.ICP.Geo)
		}
		calls = append(calls, task.Call{Tool: ToolCompanyContacts, Args: args})
	}

	policy := sp.Policy
	policy.RequiredFields = appendUnique(policy.RequiredFields, "contact_name", "title")
	if spec.Constraints.VerifiedEmail() {
		policy.RequiredFields = appendUnique(policy.RequiredFields, "email")
		policy.VerifiedEmail = true
	}

	goal := fmt.Sprintf("Find decision makers (%s) at %s", strings.Join(p.Titles(), ", "),
		orDefault(company, "the target accounts"))
	id := "contacts"
	if company != "" {
		id += "-" + slug(company)
	}
	return sp.newTask(id, goal, task.KindContacts, company, policy, calls)
}

func (sp StaticPlanner) enrichmentTask(spec Spec, company string) *task.Task {
	var calls []task.Call
	if company != "" {
		calls = append(calls,
			task.Call{Tool: ToolEnrichCompany, Args: map[string]any{"company": company}},
			task.Call{Tool: ToolPerplexitySearch, Args: map[string]any{
				"query": company + " company overview funding headcount", "field": "overview", "entity": company,
			}},
		)
	} else {
		calls = append(calls, task.Call{Tool: ToolWebSearch, Args: map[string]any{
			"query": fmt.Sprintf("top %s companies %s official site", first(spec.ICP.Industries), first(spec.ICP.Geo)),
			"field": "domain",
		}})
	}

	policy := sp.Policy
	policy.RequiredFields = appendUnique(policy.RequiredFields, "domain")

	id := "enrich"
	if company != "" {
		id += "-" + slug(company)
	}
	goal := "Build an account brief for " + orDefault(company, "the target accounts")
	return sp.newTask(id, goal, task.KindEnrichment, company, policy, calls)
}

func signalsOrNews(signals []Signal) []Signal {
	if len(signals) == 0 {
		return []Signal{{Type: SignalNews, WithinDays: 30}}
	}
	return signals
}

func signalQuery(t SignalType) string {
	switch t {
	case SignalProductLaunch:
		return "launches new product"
	case SignalJobChange:
		return "appoints new executive"
	case SignalExpansion:
		return "expands opens new office"
	default:
		return "news"
	}
}

func setSubject(args map[string]any, company, industry string) {
	if company != "" {
		args["company"] = company
		return
	}
	args["industry"] = industry
}

func withinLabel(days int) string {
	if days <= 0 {
		return ""
	}
	return fmt.Sprintf("in the last %d days", days)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func first(in []string) string {
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func appendUnique(dst []string, items ...string) []string {
	out := append([]string(nil), dst...)
	for _, it := range items {
		found := false
		for _, d := range out {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			out = append(out, it)
		}
	}
	return out
}

// PlanStep is a display row for a planned task.
type PlanStep struct {
	TaskID   string   `json:"task_id"`
	Kind     string   `json:"kind"`
	Goal     string   `json:"goal"`
	Tools    []string `json:"tools"`
	Requires []string `json:"requires,omitempty"`
}

// Preview summarizes tasks for human review before execution.
func Preview(tasks []*task.Task) []PlanStep {
	steps := make([]PlanStep, 0, len(tasks))
	for _, t := range tasks {
		var tools []string
		for _, c := range t.Calls {
			tools = appendUnique(tools, c.Tool)
		}
		steps = append(steps, PlanStep{
			TaskID:   t.ID,
			Kind:     string(t.Kind),
			Goal:     t.Goal,
			Tools:    tools,
			Requires: t.Policy.RequiredFields,
		})
	}
	return steps
}
