package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "runs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func archive(t *testing.T, id string, started time.Time) Archive {
	t.Helper()
	tk := task.New("t1", "find hiring", task.KindSignal, task.Policy{})
	tk.Start()
	e, _ := evidence.New(evidence.Params{Claim: "Acme hiring SDRs", SourceURL: "https://jobs.example.com", Confidence: 0.8})
	tk.Append(e)
	tk.Complete()
	run := task.NewRun(id, "lead_list", []*task.Task{tk}, task.Limits{})
	run.StartedAt = started
	run.EndedAt = started.Add(time.Minute)
	return Archive{
		Run:      run.Record(),
		Outcome:  executor.Outcome{RunID: id, Steps: 1, Counts: run.Counts()},
		Workflow: "fintech-leads",
	}
}

func TestSaveGetRun(t *testing.T) {
	s := newTestStore(t)
	a := archive(t, "run-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := s.SaveRun(a); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	restored := task.RunFromRecord(got.Run)
	if restored.Tasks[0].Status() != task.StatusDone || restored.Tasks[0].Len() != 1 {
		t.Errorf("restored task = %+v", restored.Tasks[0].Record())
	}

	latest, err := s.GetRun("latest")
	if err != nil || latest.Run.ID != "run-1" {
		t.Errorf("latest = %v %v", latest.Run.ID, err)
	}

	if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveRun(Archive{}); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		if err := s.SaveRun(archive(t, id, base.Add(offsets[i]))); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
		t.Fatalf("ListRuns = %+v", list)
	}
	if list[0].Done != 1 || list[0].Workflow != "fintech-leads" {
		t.Errorf("summary = %+v", list[0])
	}
}

func TestEventLog(t *testing.T) {
	s := newTestStore(t)
	sink := s.EventSink("run-1", nil)
	for _, typ := range []events.EventType{events.EventInit, events.EventToolCall, events.EventToolResult, events.EventFinal} {
		sink.Publish(events.NewEvent(typ, string(typ)))
	}

	got, err := s.Events("run-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 4 || got[0].Type != events.EventInit || got[3].Type != events.EventFinal {
		t.Fatalf("events = %+v", got)
	}
	if none, _ := s.Events("other"); len(none) != 0 {
		t.Error("unknown run should have no events")
	}

	s.SaveRun(archive(t, "run-1", time.Now()))
	if err := s.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if left, _ := s.Events("run-1"); len(left) != 0 {
		t.Error("events not deleted with run")
	}
	if err := s.DeleteRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}
