package workflow

import (
	"fmt"
	"strings"
)

// ValidationError is a single problem at a field path.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds every problem found in a spec.
type ValidationResult struct {
	Errors []ValidationError `json:"errors"`
}

// Valid returns true if no problems were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error joins all problems into one message.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var validGoals = map[Goal]bool{
	GoalLeadList: true, GoalAccountBriefs: true, GoalCompetitorMoves: true, GoalOutreach: true,
}

var validSignals = map[SignalType]bool{
	SignalHiring: true, SignalFunding: true, SignalProductLaunch: true, SignalTechStack: true,
	SignalNews: true, SignalJobChange: true, SignalExpansion: true,
}

var validFormats = map[string]bool{"csv": true, "json": true, "markdown": true}

// Validate checks required fields and value ranges.
func Validate(s Spec) ValidationResult {
	var r ValidationResult

	switch {
	case s.Goal == "":
		r.add("goal", "required")
	case !validGoals[s.Goal]:
		r.add("goal", "unsupported goal %q", s.Goal)
	}

	if len(nonEmpty(s.ICP.Industries)) == 0 {
		r.add("icp.industries", "at least one industry required")
	}
	if len(nonEmpty(s.ICP.Geo)) == 0 {
		r.add("icp.geo", "at least one region required")
	}
	if cs := s.ICP.CompanySize; cs != nil {
		if cs.Min < 0 || cs.Max < 0 {
			r.add("icp.company_size", "bounds must not be negative")
		} else if cs.Max > 0 && cs.Min > cs.Max {
			r.add("icp.company_size", "min %d exceeds max %d", cs.Min, cs.Max)
		}
	}

	for i, sig := range s.Signals {
		field := fmt.Sprintf("signals[%d]", i)
		switch {
		case sig.Type == "":
			r.add(field+".type", "required")
		case !validSignals[sig.Type]:
			r.add(field+".type", "unknown signal type %q", sig.Type)
		}
		if sig.WithinDays < 0 {
			r.add(field+".within_days", "must not be negative")
		}
	}

	if s.Constraints.MaxAccounts < 0 {
		r.add("constraints.max_accounts", "must not be negative")
	}
	if c := s.Constraints.MinSignalConfidence; c != nil && (*c < 0 || *c > 1) {
		r.add("constraints.min_signal_confidence", "must be within [0,1], got %v", *c)
	}

	if f := s.Deliverable.Format; f != "" && !validFormats[f] {
		r.add("deliverable.format", "unsupported format %q (expected csv, json or markdown)", f)
	}
	for i, c := range s.Deliverable.Columns {
		if strings.TrimSpace(c) == "" {
			r.add(fmt.Sprintf("deliverable.columns[%d]", i), "empty column name")
		}
	}

	seen := make(map[string]bool)
	for i, p := range s.Params {
		field := fmt.Sprintf("params[%d].name", i)
		switch {
		case p.Name == "":
			r.add(field, "required")
		case seen[p.Name]:
			r.add(field, "duplicate param name %q", p.Name)
		default:
			seen[p.Name] = true
		}
	}
	return r
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
