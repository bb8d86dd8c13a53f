// Package synth turns a finished run into a report. It only reports values
// present in evidence; anything else is marked unknown.
package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

// Unknown is reported for fields no evidence supports.
const Unknown = "unknown"

// DefaultColumns are the lead table columns.
var DefaultColumns = []string{"company", "domain", "signal", "source_url", "contact_name", "title", "email", "confidence"}

// Field is one structured value and the record that supports it.
type Field struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Known      bool    `json:"known"`
	SourceURL  string  `json:"source_url,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Citation is a sourced claim as it appears in the report.
type Citation struct {
	Claim       string     `json:"claim"`
	SourceURL   string     `json:"source_url"`
	Snippet     string     `json:"snippet,omitempty"`
	Confidence  float64    `json:"confidence"`
	Tool        string     `json:"tool,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TaskReport is the per-task section of a report.
type TaskReport struct {
	ID        string            `json:"id"`
	Goal      string            `json:"goal"`
	Kind      task.Kind         `json:"kind"`
	Status    task.Status       `json:"status"`
	Reason    task.Reason       `json:"reason,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Steps     int               `json:"steps"`
	Fields    []Field           `json:"fields"`
	Latest    *Citation         `json:"latest_signal,omitempty"`
	Citations []Citation        `json:"citations"`
	Conflicts []verify.Conflict `json:"conflicts,omitempty"`
}

// Lead is one row of the deliverable table, keyed by column name.
type Lead struct {
	Entity string            `json:"entity"`
	Values map[string]string `json:"values"`
}

// Report is the synthesized output of a run.
type Report struct {
	RunID       string       `json:"run_id"`
	Goal        string       `json:"goal"`
	GeneratedAt time.Time    `json:"generated_at"`
	Steps       int          `json:"steps"`
	Done        int          `json:"done"`
	Failed      int          `json:"failed"`
	Columns     []string     `json:"columns"`
	Leads       []Lead       `json:"leads"`
	Tasks       []TaskReport `json:"tasks"`
	// Overall says whether the done tasks together clear the run-level bar.
	Overall verify.Overall `json:"overall"`
	// Narrative is an optional model-written summary of the leads.
	Narrative string `json:"narrative,omitempty"`
}

// Options shape the lead table.
type Options struct {
	Columns []string `json:"columns,omitempty"`
	// MaxLeads caps the number of lead rows; zero means no cap.
	MaxLeads int `json:"max_leads,omitempty"`
	// Overall defaults to verify.DefaultOverall when zero.
	Overall verify.OverallPolicy `json:"overall"`
}

// Synthesize builds the report. It never drops a task and is deterministic
// for identical runs.
func Synthesize(run *task.Run, opts Options) Report {
	cols := opts.Columns
	if len(cols) == 0 {
		cols = DefaultColumns
	}
	rep := Report{
		RunID:       run.ID,
		Goal:        run.Goal,
		GeneratedAt: run.EndedAt,
		Steps:       run.Steps(),
		Columns:     cols,
	}

	var done []evidence.Evidence
	for _, t := range run.Tasks {
		tr := taskReport(t)
		rep.Tasks = append(rep.Tasks, tr)
		switch t.Status() {
		case task.StatusDone:
			rep.Done++
			done = append(done, t.Evidence()...)
		case task.StatusFailed:
			rep.Failed++
		}
	}
	rep.Leads = leads(done, cols, opts.MaxLeads)
	bar := opts.Overall
	if bar == (verify.OverallPolicy{}) {
		bar = verify.DefaultOverall
	}
	rep.Overall = verify.Assess(run, bar)
	return rep
}

func taskReport(t *task.Task) TaskReport {
	records := t.Evidence()
	tr := TaskReport{
		ID: t.ID, Goal: t.Goal, Kind: t.Kind,
		Status: t.Status(), Reason: t.Reason(), Detail: t.Detail(), Steps: t.Steps(),
		Citations: make([]Citation, 0, len(records)),
		Conflicts: verify.Conflicts(records),
	}
	for _, e := range records {
		tr.Citations = append(tr.Citations, cite(e))
	}
	if n := len(records); n > 0 {
		c := cite(records[n-1])
		tr.Latest = &c
	}

	names := append([]string{}, t.Policy.RequiredFields...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	var extra []string
	for _, e := range records {
		if e.Field != "" && !seen[e.Field] {
			seen[e.Field] = true
			extra = append(extra, e.Field)
		}
	}
	sort.Strings(extra)
	for _, name := range append(names, extra...) {
		tr.Fields = append(tr.Fields, resolveField(records, name))
	}
	return tr
}

func resolveField(records []evidence.Evidence, name string) Field {
	e, ok := verify.Resolve(records, name)
	if !ok {
		return Field{Name: name, Value: Unknown}
	}
	return Field{Name: name, Value: e.Value, Known: true, SourceURL: e.SourceURL, Confidence: e.Confidence}
}

func cite(e evidence.Evidence) Citation {
	return Citation{
		Claim: e.Claim, SourceURL: e.SourceURL, Snippet: e.Snippet,
		Confidence: e.Confidence, Tool: e.Tool, PublishedAt: e.PublishedAt,
	}
}

// leads groups records by entity in order of first appearance. A person row
// falls back to its company's records for columns it lacks.
func leads(records []evidence.Evidence, cols []string, max int) []Lead {
	var order []string
	byEntity := make(map[string][]evidence.Evidence)
	for _, e := range records {
		if e.Entity == "" {
			continue
		}
		if _, ok := byEntity[e.Entity]; !ok {
			order = append(order, e.Entity)
		}
		byEntity[e.Entity] = append(byEntity[e.Entity], e)
	}

	// Companies that have contacts are represented by their contact rows.
	covered := make(map[string]bool)
	for _, name := range order {
		if c, ok := verify.Resolve(byEntity[name], "company"); ok && c.Value != name {
			if _, isContact := verify.Resolve(byEntity[name], "contact_name"); isContact {
				covered[c.Value] = true
			}
		}
	}

	var out []Lead
	for _, name := range order {
		if covered[name] {
			continue
		}
		own := byEntity[name]
		var company []evidence.Evidence
		if c, ok := verify.Resolve(own, "company"); ok && c.Value != name {
			company = byEntity[c.Value]
		}
		lead := Lead{Entity: name, Values: make(map[string]string, len(cols))}
		for _, col := range cols {
			v := column(own, col)
			if v == Unknown && company != nil {
				v = column(company, col)
			}
			lead.Values[col] = v
		}
		out = append(out, lead)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func column(records []evidence.Evidence, col string) string {
	switch col {
	case "signal":
		for i := len(records) - 1; i >= 0; i-- {
			if strings.HasPrefix(records[i].Field, "signal.") {
				return records[i].Claim
			}
		}
		return Unknown
	case "source_url":
		if best, ok := mostConfident(records); ok {
			return best.SourceURL
		}
		return Unknown
	case "confidence":
		if best, ok := mostConfident(records); ok {
			return strconv.FormatFloat(best.Confidence, 'f', 2, 64)
		}
		return Unknown
	default:
		if e, ok := verify.Resolve(records, col); ok {
			return e.Value
		}
		return Unknown
	}
}

func mostConfident(records []evidence.Evidence) (evidence.Evidence, bool) {
	var best evidence.Evidence
	found := false
	for _, e := range records {
		if !found || e.Confidence >= best.Confidence {
			best, found = e, true
		}
	}
	return best, found
}

// Summary is a one-line description of the report.
func (r Report) Summary() string {
	return fmt.Sprintf("%s: %d tasks (%d done, %d failed), %d leads, %d steps",
		r.Goal, len(r.Tasks), r.Done, r.Failed, len(r.Leads), r.Steps)
}
