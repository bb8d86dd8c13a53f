package workflow

import (
	"strings"
	"testing"
)

func validSpec() Spec {
	return Spec{
		Name: "ok",
		Goal: GoalLeadList,
		ICP:  ICP{Industries: []string{"fintech"}, Geo: []string{"NYC"}},
	}
}

func TestValidate(t *testing.T) {
	neg := -0.1
	tests := []struct {
		name   string
		mutate func(*Spec)
		field  string
	}{
		{"valid", func(*Spec) {}, ""},
		{"missing goal", func(s *Spec) { s.Goal = "" }, "goal"},
		{"bad goal", func(s *Spec) { s.Goal = "world_peace" }, "goal"},
		{"no industries", func(s *Spec) { s.ICP.Industries = []string{" "} }, "icp.industries"},
		{"no geo", func(s *Spec) { s.ICP.Geo = nil }, "icp.geo"},
		{"size inverted", func(s *Spec) { s.ICP.CompanySize = &CompanySize{Min: 500, Max: 50} }, "icp.company_size"},
		{"bad signal", func(s *Spec) { s.Signals = []Signal{{Type: "rumor"}} }, "signals[0].type"},
		{"negative window", func(s *Spec) { s.Signals = []Signal{{Type: SignalNews, WithinDays: -1}} }, "signals[0].within_days"},
		{"negative accounts", func(s *Spec) { s.Constraints.MaxAccounts = -5 }, "constraints.max_accounts"},
		{"confidence range", func(s *Spec) { s.Constraints.MinSignalConfidence = &neg }, "constraints.min_signal_confidence"},
		{"bad format", func(s *Spec) { s.Deliverable.Format = "pdf" }, "deliverable.format"},
		{"empty column", func(s *Spec) { s.Deliverable.Columns = []string{"company", ""} }, "deliverable.columns[1]"},
		{"dup param", func(s *Spec) { s.Params = []ParamDef{{Name: "a"}, {Name: "a"}} }, "params[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			r := Validate(s)
			if tt.field == "" {
				if !r.Valid() {
					t.Fatalf("unexpected errors: %s", r.Error())
				}
				return
			}
			if r.Valid() {
				t.Fatalf("expected error on %s", tt.field)
			}
			found := false
			for _, e := range r.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not include field %s", r.Errors, tt.field)
			}
		})
	}
}

func TestValidationResultError(t *testing.T) {
	r := Validate(Spec{})
	if r.Valid() {
		t.Fatal("empty spec should be invalid")
	}
	if !strings.HasPrefix(r.Error(), "validation failed: ") {
		t.Errorf("Error() = %q", r.Error())
	}
	if (ValidationResult{}).Error() != "" {
		t.Error("valid result should have empty Error()")
	}
}
