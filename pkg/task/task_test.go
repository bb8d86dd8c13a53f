package task

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

func mustEvidence(t *testing.T, url string, conf float64) evidence.Evidence {
	t.Helper()
	e, err := evidence.New(evidence.Params{Claim: "claim " + url, SourceURL: url, Confidence: conf})
	if err != nil {
		t.Fatalf("evidence.New: %v", err)
	}
	return e
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"pending to in_progress", StatusPending, StatusInProgress, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to done", StatusPending, StatusDone, false},
		{"in_progress to done", StatusInProgress, StatusDone, true},
		{"in_progress to failed", StatusInProgress, StatusFailed, true},
		{"in_progress to pending", StatusInProgress, StatusPending, false},
		{"done to pending", StatusDone, StatusPending, false},
		{"done to failed", StatusDone, StatusFailed, false},
		{"failed to in_progress", StatusFailed, StatusInProgress, false},
		{"failed to done", StatusFailed, StatusDone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAllowedTransition(tt.from, tt.to); got != tt.ok {
				t.Errorf("isAllowedTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestCompleteRequiresEvidence(t *testing.T) {
	tk := New("t1", "find contacts", KindContacts, Policy{})
	if err := tk.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tk.Complete(); !errors.Is(err, ErrNoEvidence) {
		t.Fatalf("expected ErrNoEvidence, got %v", err)
	}
	if tk.Status() != StatusInProgress {
		t.Fatalf("status changed on refused completion: %s", tk.Status())
	}

	tk.Append(mustEvidence(t, "https://example.com/a", 0.9))
	if err := tk.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := tk.Fail(ReasonNoProgress, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("done task must not fail, got %v", err)
	}
	if err := tk.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("done task must not restart, got %v", err)
	}
}

func TestStartIsIdempotentWhileInProgress(t *testing.T) {
	tk := New("t1", "goal", KindResearch, Policy{})
	if err := tk.Start(); err != nil {
		t.Fatal(err)
	}
	if err := tk.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}

func TestAppend(t *testing.T) {
	tk := New("t1", "goal", KindResearch, Policy{})
	a := mustEvidence(t, "https://example.com/a", 0.3)
	b := mustEvidence(t, "https://example.com/b", 0.6)

	n, err := tk.Append(a, b, a)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n != 2 || tk.Len() != 2 {
		t.Fatalf("expected 2 added, got n=%d len=%d", n, tk.Len())
	}
	if got := tk.Evidence(); got[0].SourceURL != a.SourceURL || got[1].SourceURL != b.SourceURL {
		t.Errorf("collection order not preserved: %+v", got)
	}

	bad := evidence.Evidence{Claim: "no url", Confidence: 0.9}
	if _, err := tk.Append(bad); !errors.Is(err, evidence.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	for _, e := range tk.Evidence() {
		if e.SourceURL == "" {
			t.Fatal("evidence without source url entered the task")
		}
	}

	tk.Fail(ReasonCancelled, "")
	if _, err := tk.Append(mustEvidence(t, "https://example.com/c", 1)); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestEvidenceReturnsCopy(t *testing.T) {
	tk := New("t1", "goal", KindResearch, Policy{})
	tk.Append(mustEvidence(t, "https://example.com/a", 0.3))
	got := tk.Evidence()
	got[0].SourceURL = ""
	if tk.Evidence()[0].SourceURL == "" {
		t.Fatal("caller mutated task evidence")
	}
}

func TestPolicyNormalize(t *testing.T) {
	p := Policy{MinEvidence: 0, MinConfidence: 1.5}.Normalize()
	if p.MinEvidence != 1 || p.MinConfidence != 1 {
		t.Errorf("Normalize() = %+v", p)
	}
}

func TestRunReserveStep(t *testing.T) {
	r := NewRun("r1", "lead_list", nil, Limits{MaxSteps: 5, MaxStepsPerTask: 2})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.ReserveStep() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 5 || r.Steps() != 5 {
		t.Fatalf("granted=%d steps=%d, want 5", granted, r.Steps())
	}
	if r.BudgetLeft() {
		t.Error("budget should be spent")
	}
}

func TestRunDefaultsAndFailRemaining(t *testing.T) {
	a := New("a", "goal", KindResearch, Policy{})
	b := New("b", "goal", KindResearch, Policy{})
	a.Start()
	a.Append(mustEvidence(t, "https://example.com", 1))
	a.Complete()

	r := NewRun("r1", "lead_list", []*Task{a, b}, Limits{})
	if r.Limits != DefaultLimits() {
		t.Fatalf("limits = %+v", r.Limits)
	}
	if n := r.FailRemaining(ReasonBudgetExhausted, "global step limit reached"); n != 1 {
		t.Fatalf("FailRemaining = %d, want 1", n)
	}
	if b.Reason() != ReasonBudgetExhausted || !r.AllTerminal() {
		t.Fatalf("b = %s/%s", b.Status(), b.Reason())
	}
	counts := r.Counts()
	if counts[StatusDone] != 1 || counts[StatusFailed] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestRunRecordRoundTrip(t *testing.T) {
	a := New("a", "find hiring", KindSignal, Policy{MinEvidence: 1, MinConfidence: 0.5, RequiredFields: []string{"signal.hiring"}},
		Call{Tool: "find_hiring_signals", Args: map[string]any{"company": "Acme"}})
	a.Start()
	a.Append(mustEvidence(t, "https://jobs.example.com/1", 0.7))
	a.IncStep()
	r := NewRun("r1", "lead_list", []*Task{a}, Limits{MaxSteps: 10, MaxStepsPerTask: 3})
	r.ReserveStep()

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back := RunFromRecord(rec)
	if back.Steps() != 1 || len(back.Tasks) != 1 {
		t.Fatalf("restored run = %+v", back.Record())
	}
	bt := back.Tasks[0]
	if bt.Status() != StatusInProgress || bt.Steps() != 1 || bt.Len() != 1 {
		t.Errorf("restored task = %+v", bt.Record())
	}
	if n, _ := bt.Append(a.Evidence()...); n != 0 {
		t.Error("restored task should recognise existing evidence as duplicate")
	}
}
