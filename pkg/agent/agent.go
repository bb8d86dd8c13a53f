// Package agent ties planning, execution, archiving and reporting into one
// run for the CLI and the JSON-RPC server.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/store"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

// ErrNoStore is returned by archive lookups when no run store is configured.
var ErrNoStore = errors.New("no run store configured")

// Summarizer writes a narrative for a finished report.
type Summarizer interface {
	Summarize(ctx context.Context, r synth.Report) (string, error)
}

// Agent runs workflows. Only Tools is required.
type Agent struct {
	Tools   *tools.Registry
	Planner workflow.Planner
	Limits  task.Limits
	Profile *profile.Profile

	// ExecOptions are applied to the executor of every run, before the
	// per-run sink and logger.
	ExecOptions []executor.Option

	Store         *store.BoltStore
	Bus           *events.MemoryBus
	ScratchpadDir string
	Summarizer    Summarizer
	Logger        *slog.Logger

	NewID func() string
	Now   func() time.Time
}

// Result is a finished run.
type Result struct {
	Run        *task.Run        `json:"-"`
	Outcome    executor.Outcome `json:"outcome"`
	Report     synth.Report     `json:"report"`
	Scratchpad string           `json:"scratchpad,omitempty"`
}

// Plan validates spec and returns its pending tasks.
func (a *Agent) Plan(ctx context.Context, spec workflow.Spec) ([]*task.Task, error) {
	if vr := workflow.Validate(spec); !vr.Valid() {
		return nil, fmt.Errorf("invalid workflow: %s", vr.Error())
	}
	tasks, err := a.planner().Plan(ctx, spec, a.Profile)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if len(tasks) == 0 {
		return nil, errors.New("plan: no tasks; check that search tools are configured")
	}
	return tasks, nil
}

// Run plans and executes spec.
func (a *Agent) Run(ctx context.Context, name string, spec workflow.Spec) (*Result, error) {
	tasks, err := a.Plan(ctx, spec)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, name, spec, tasks)
}

// Execute runs planned tasks, archives the run and builds its report. A
// cancelled run is still archived and reported; the context error is
// returned with the partial result.
func (a *Agent) Execute(ctx context.Context, name string, spec workflow.Spec, tasks []*task.Task) (*Result, error) {
	if a.Tools == nil {
		return nil, errors.New("agent: no tools configured")
	}
	run := task.NewRun(a.newID(), string(spec.Goal), tasks, a.Limits)
	run.Profile = a.Profile
	run.ExcludeKeywords = spec.Constraints.ExcludeKeywords
	log := a.logger().With("run_id", run.ID)

	res := &Result{Run: run}
	sinks := []events.Sink{}
	if a.ScratchpadDir != "" {
		pad, err := events.OpenScratchpad(events.ScratchpadPath(a.ScratchpadDir, run.ID, a.now()))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := pad.Close(); err != nil {
				log.Warn("scratchpad close failed", "error", err)
			}
		}()
		res.Scratchpad = pad.Path()
		sinks = append(sinks, pad)
	}
	if a.Store != nil {
		sinks = append(sinks, a.Store.EventSink(run.ID, log))
	}
	if a.Bus != nil {
		sinks = append(sinks, a.Bus)
	}

	opts := append([]executor.Option{}, a.ExecOptions...)
	opts = append(opts, executor.WithSink(events.Multi(sinks...)), executor.WithLogger(log))
	out, runErr := executor.New(a.Tools, opts...).Run(ctx, run)
	res.Outcome = out

	// The report is built even after cancellation, so use a fresh context
	// for the optional narrative.
	reportCtx := ctx
	if ctx.Err() != nil {
		reportCtx = context.WithoutCancel(ctx)
	}
	res.Report = a.Report(reportCtx, run, spec)

	if a.Store != nil {
		archive := store.Archive{
			Run: run.Record(), Outcome: out, Workflow: name, Scratchpad: res.Scratchpad,
			Report: ReportOptions(spec), Narrative: res.Report.Narrative,
		}
		if err := a.Store.SaveRun(archive); err != nil {
			log.Error("archive run failed", "error", err)
		}
	}
	return res, runErr
}

// Report synthesizes the deliverable for a run.
func (a *Agent) Report(ctx context.Context, run *task.Run, spec workflow.Spec) synth.Report {
	r := synth.Synthesize(run, ReportOptions(spec))
	if a.Summarizer != nil && r.Done > 0 {
		narrative, err := a.Summarizer.Summarize(ctx, r)
		if err != nil {
			a.logger().Warn("report summary skipped", "run_id", run.ID, "error", err)
		} else {
			r.Narrative = narrative
		}
	}
	return r
}

// ReportOptions are the lead table options a workflow asks for.
func ReportOptions(spec workflow.Spec) synth.Options {
	return synth.Options{
		Columns:  spec.Deliverable.Columns,
		MaxLeads: spec.Constraints.Accounts(),
	}
}

// Archived loads a stored run and rebuilds its report with the options and
// narrative it was first reported with.
func (a *Agent) Archived(id string) (store.Archive, synth.Report, error) {
	if a.Store == nil {
		return store.Archive{}, synth.Report{}, ErrNoStore
	}
	archive, err := a.Store.GetRun(id)
	if err != nil {
		return store.Archive{}, synth.Report{}, err
	}
	r := synth.Synthesize(task.RunFromRecord(archive.Run), archive.Report)
	r.Narrative = archive.Narrative
	return archive, r, nil
}

// Runs lists archived runs, newest first.
func (a *Agent) Runs() ([]store.Summary, error) {
	if a.Store == nil {
		return nil, ErrNoStore
	}
	return a.Store.ListRuns()
}

// Render renders a report in memory.
func Render(r synth.Report, format string) ([]byte, error) {
	var buf bytes.Buffer
	if err := synth.Render(&buf, r, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Agent) planner() workflow.Planner {
	if a.Planner != nil {
		return a.Planner
	}
	return workflow.StaticPlanner{Tools: a.Tools}
}

func (a *Agent) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a *Agent) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}
