package verify

import (
	"fmt"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// OverallPolicy sets the run-level bar for a usable result.
type OverallPolicy struct {
	// MinDone is the number of completed tasks required. It is capped at
	// the number of tasks in the run.
	MinDone int `json:"min_done"`
	// MinEvidence counts records across completed tasks only.
	MinEvidence int `json:"min_evidence"`
}

// DefaultOverall is the bar used when none is configured.
var DefaultOverall = OverallPolicy{MinDone: 2, MinEvidence: 5}

// Overall is the run-level sufficiency verdict.
type Overall struct {
	Sufficient bool   `json:"sufficient"`
	Done       int    `json:"done"`
	Evidence   int    `json:"evidence"`
	Reason     string `json:"reason,omitempty"`
}

// Assess reports whether the completed tasks of a run together carry
// enough evidence. Failed and pending tasks do not count.
func Assess(run *task.Run, p OverallPolicy) Overall {
	var o Overall
	for _, t := range run.Tasks {
		if t.Status() == task.StatusDone {
			o.Done++
			o.Evidence += t.Len()
		}
	}
	minDone := p.MinDone
	if minDone > len(run.Tasks) {
		minDone = len(run.Tasks)
	}
	switch {
	case o.Done < minDone:
		o.Reason = fmt.Sprintf("%d of %d required tasks done", o.Done, minDone)
	case o.Evidence < p.MinEvidence:
		o.Reason = fmt.Sprintf("%d evidence records, need %d", o.Evidence, p.MinEvidence)
	default:
		o.Sufficient = true
	}
	return o
}
