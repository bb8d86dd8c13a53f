package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
)

// Summarizer writes a narrative section for a finished report. It only
// sees values already in the report.
type Summarizer struct {
	Model Completer
	// MaxLeads caps how many lead rows are shown to the model. Zero means 20.
	MaxLeads int
}

// Summarize returns the narrative. The report itself is not modified.
func (s *Summarizer) Summarize(ctx context.Context, r synth.Report) (string, error) {
	text, err := s.Model.Complete(ctx, summarySystem, s.prompt(r))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Summarizer) prompt(r synth.Report) string {
	limit := s.MaxLeads
	if limit <= 0 {
		limit = 20
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nTasks: %d done, %d failed\n\n", r.Goal, r.Done, r.Failed)
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "Task %q: %s", t.Goal, t.Status)
		if t.Reason != "" {
			fmt.Fprintf(&b, " (%s)", t.Reason)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nLeads (%s):\n", strings.Join(r.Columns, " | "))
	for i, l := range r.Leads {
		if i == limit {
			fmt.Fprintf(&b, "... and %d more\n", len(r.Leads)-limit)
			break
		}
		row := make([]string, len(r.Columns))
		for j, c := range r.Columns {
			row[j] = l.Values[c]
		}
		b.WriteString(strings.Join(row, " | ") + "\n")
	}
	return b.String()
}
