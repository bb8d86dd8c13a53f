package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

var _ verify.Judge = (*Judge)(nil)

// Judge asks the model whether evidence is relevant to a task goal. It is
// only consulted after the structural checks pass, so it can veto a task
// but never complete one on its own.
type Judge struct {
	Model Completer
	// MaxRecords caps how many records are shown to the model. Zero means 15.
	MaxRecords int
}

type judgeReply struct {
	Done      bool   `json:"done"`
	Reasoning string `json:"reasoning"`
}

// Judge implements verify.Judge.
func (j *Judge) Judge(ctx context.Context, goal string, records []evidence.Evidence) (bool, string, error) {
	if len(records) == 0 {
		return false, "no evidence collected", nil
	}
	var reply judgeReply
	if err := completeJSON(ctx, j.Model, judgeSystem, j.prompt(goal, records), &reply); err != nil {
		return false, "", err
	}
	return reply.Done, reply.Reasoning, nil
}

func (j *Judge) prompt(goal string, records []evidence.Evidence) string {
	limit := j.MaxRecords
	if limit <= 0 {
		limit = 15
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task goal: %s\n\nEvidence (%d records):\n", goal, len(records))
	b.WriteString(formatEvidence(records, limit))
	b.WriteString("\nIs this task done?")
	return b.String()
}

func formatEvidence(records []evidence.Evidence, limit int) string {
	var b strings.Builder
	for i, e := range records {
		if i == limit {
			fmt.Fprintf(&b, "... and %d more\n", len(records)-limit)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s", e.Entity, e.Claim)
		if e.Field != "" {
			fmt.Fprintf(&b, " (%s=%s)", e.Field, evidence.Clip(e.Value, 80))
		}
		fmt.Fprintf(&b, " source=%s confidence=%.2f\n", e.SourceURL, e.Confidence)
	}
	return b.String()
}
