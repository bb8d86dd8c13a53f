// Package executor drives a workflow run: it picks a tool for each open task,
// invokes it under a timeout and retry policy, appends the evidence, and asks
// the validator whether the task is finished. It enforces the global and
// per-task step limits and ends tasks that repeat a fruitless call.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

// Invoker runs a named tool. *tools.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (tools.Result, error)
}

// CallError records a tool call that failed without ending its task.
type CallError struct {
	TaskID  string     `json:"task_id"`
	Step    int        `json:"step"`
	Tool    string     `json:"tool"`
	Kind    tools.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID           string              `json:"run_id"`
	Steps           int                 `json:"steps"`
	Counts          map[task.Status]int `json:"counts"`
	CallErrors      []CallError         `json:"call_errors,omitempty"`
	BudgetExhausted bool                `json:"budget_exhausted"`
	Cancelled       bool                `json:"cancelled"`
	Duration        time.Duration       `json:"duration"`
}

// Executor runs workflow runs to completion.
type Executor struct {
	invoker     Invoker
	selector    Selector
	validator   *verify.Validator
	sink        events.Sink
	logger      *slog.Logger
	timeout     time.Duration
	retries     int
	backoff     time.Duration
	concurrency int
	now         func() time.Time
}

// New creates an Executor over the given invoker.
func New(inv Invoker, opts ...Option) *Executor {
	e := &Executor{
		invoker:     inv,
		selector:    StaticSelector{},
		validator:   verify.NewValidator(),
		sink:        events.Discard,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:     DefaultTimeout,
		retries:     DefaultRetries,
		backoff:     DefaultBackoff,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// taskState is the loop's private bookkeeping for one task.
type taskState struct {
	history   []Attempt
	lastKey   string
	lastAdded int
}

type runner struct {
	*Executor
	run    *task.Run
	states map[string]*taskState

	mu         sync.Mutex
	callErrors []CallError
}

// Run drives every task of run to a terminal state or until the global step
// budget is spent. On cancellation the open tasks are failed with reason
// Cancelled and ctx.Err() is returned with the partial outcome.
func (e *Executor) Run(ctx context.Context, run *task.Run) (Outcome, error) {
	if e.invoker == nil {
		return Outcome{}, errors.New("executor: no invoker configured")
	}

	r := &runner{Executor: e, run: run, states: make(map[string]*taskState, len(run.Tasks))}
	for _, t := range run.Tasks {
		r.states[t.ID] = &taskState{}
	}

	start := e.now()
	run.StartedAt = start
	initEv := r.event(events.EventInit, nil, fmt.Sprintf("%d tasks, max_steps=%d, max_steps_per_task=%d",
		len(run.Tasks), run.Limits.MaxSteps, run.Limits.MaxStepsPerTask))
	initEv.Data = map[string]any{"goal": run.Goal, "limits": run.Limits, "concurrency": e.concurrency}
	e.sink.Publish(initEv)
	e.logger.Info("run started", "run_id", run.ID, "tasks", len(run.Tasks), "max_steps", run.Limits.MaxSteps)

	out := Outcome{RunID: run.ID}
	for {
		if ctx.Err() != nil {
			break
		}
		pending := run.Pending()
		if len(pending) == 0 {
			break
		}
		if !run.BudgetLeft() {
			break
		}
		if e.concurrency <= 1 {
			r.sequentialPass(ctx, pending)
		} else {
			r.parallelPass(ctx, pending)
		}
	}

	var err error
	switch {
	case ctx.Err() != nil:
		out.Cancelled = true
		err = ctx.Err()
		r.failOpen(task.ReasonCancelled, "run cancelled")
	case !run.AllTerminal():
		out.BudgetExhausted = true
		r.failOpen(task.ReasonBudgetExhausted, fmt.Sprintf("global step limit %d reached", run.Limits.MaxSteps))
	}

	run.EndedAt = e.now()
	out.Steps = run.Steps()
	out.Counts = run.Counts()
	out.CallErrors = r.callErrors
	out.Duration = run.EndedAt.Sub(start)

	final := r.event(events.EventFinal, nil, fmt.Sprintf("%d done, %d failed in %d steps",
		out.Counts[task.StatusDone], out.Counts[task.StatusFailed], out.Steps))
	final.Duration = out.Duration
	final.Data = out
	e.sink.Publish(final)
	e.logger.Info("run finished", "run_id", run.ID, "steps", out.Steps,
		"done", out.Counts[task.StatusDone], "failed", out.Counts[task.StatusFailed], "cancelled", out.Cancelled)

	return out, err
}

func (r *runner) sequentialPass(ctx context.Context, pending []*task.Task) {
	for _, t := range pending {
		if ctx.Err() != nil || !r.run.BudgetLeft() {
			return
		}
		r.step(ctx, t, recentDone(r.run, 2))
	}
}

// parallelPass gives every open task at most one call, bounded by the
// concurrency limit. Tasks are only touched by their own goroutine.
func (r *runner) parallelPass(ctx context.Context, pending []*task.Task) {
	recent := recentDone(r.run, 2)
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, t := range pending {
		t := t
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r.step(ctx, t, recent)
			return nil
		})
	}
	g.Wait()
}

// step performs one task-step: select, reserve budget, invoke, append,
// detect loops, validate.
func (r *runner) step(ctx context.Context, t *task.Task, recent []task.Record) {
	st := r.states[t.ID]

	call, ok, err := r.selector.Next(ctx, Request{Task: t, History: st.history, Recent: recent})
	if err != nil || !ok {
		detail := "no tool available for task"
		if err != nil {
			detail = fmt.Sprintf("tool selection failed: %v", err)
		}
		r.fail(t, task.ReasonNoToolAvailable, detail)
		return
	}

	if !r.run.ReserveStep() {
		return
	}
	wasPending := t.Status() == task.StatusPending
	if err := t.Start(); err != nil {
		r.logger.Error("start task", "task", t.ID, "error", err)
		return
	}
	if wasPending {
		r.sink.Publish(r.event(events.EventStatus, t, "task in_progress"))
	}
	n := t.IncStep()

	ev := r.event(events.EventToolCall, t, call.Tool)
	ev.Step, ev.Tool, ev.Args = n, call.Tool, call.Args
	r.sink.Publish(ev)

	started := r.now()
	res, callErr := r.invoke(ctx, call)
	elapsed := r.now().Sub(started)

	if ctx.Err() != nil {
		r.logger.Debug("discarding result after cancellation", "task", t.ID, "tool", call.Tool)
		return
	}

	added := 0
	if callErr == nil {
		kept := filterExcluded(res.Evidence, r.run.ExcludeKeywords)
		for i := range kept {
			if kept[i].CollectedAt.IsZero() {
				kept[i].CollectedAt = r.now()
			}
		}
		added, err = t.Append(kept...)
		if err != nil {
			r.logger.Warn("append evidence", "task", t.ID, "error", err)
		}
	}

	result := r.event(events.EventToolResult, t, fmt.Sprintf("%s: %d new records", call.Tool, added))
	result.Step, result.Tool, result.Duration = n, call.Tool, elapsed
	result.Result = events.Truncate(resultText(res))
	result.EvidenceURLs = evidenceURLs(res.Evidence)
	if callErr != nil {
		result.Error = callErr.Error()
		result.Summary = fmt.Sprintf("%s failed: %s", call.Tool, tools.KindOf(callErr))
	}
	r.sink.Publish(result)
	r.logger.Debug("tool call", "task", t.ID, "tool", call.Tool, "step", n, "added", added, "error", callErr)

	attempt := Attempt{Call: call, Added: added}
	if callErr != nil {
		attempt.Error = callErr.Error()
	}
	st.history = append(st.history, attempt)

	if callErr != nil {
		switch tools.KindOf(callErr) {
		case tools.KindInvalidArguments, tools.KindUnknownTool:
			r.recordCallError(t, n, call.Tool, callErr)
		case tools.KindFatal:
			r.fail(t, task.ReasonToolFailed, callErr.Error())
			return
		default:
			r.fail(t, task.ReasonToolUnavailable, callErr.Error())
			return
		}
	}

	key := callKey(call)
	repeated := st.lastKey == key && st.lastAdded == 0 && added == 0
	st.lastKey, st.lastAdded = key, added
	if repeated {
		r.fail(t, task.ReasonNoProgress, fmt.Sprintf("%s repeated with identical arguments and no new evidence", call.Tool))
		return
	}

	d := r.validator.Evaluate(ctx, t, r.run.Limits.MaxStepsPerTask)
	v := r.event(events.EventValidation, t, fmt.Sprintf("%s: %s", d.Verdict, d.Message))
	v.Step = n
	v.Data = d
	r.sink.Publish(v)

	if err := verify.Apply(t, d); err != nil {
		r.logger.Error("apply decision", "task", t.ID, "verdict", d.Verdict, "error", err)
		return
	}
	if d.Verdict != verify.VerdictContinue {
		r.statusEvent(t)
	}
}

// invoke runs one call with a per-call timeout and retries transient
// failures with doubling backoff. The call context is detached from run
// cancellation so in-flight calls finish; the caller discards their results.
func (r *runner) invoke(ctx context.Context, call task.Call) (tools.Result, error) {
	base := context.WithoutCancel(ctx)
	for attempt := 0; ; attempt++ {
		res, err := r.invokeOnce(base, call)
		if err == nil || !tools.Retryable(err) || attempt >= r.retries || ctx.Err() != nil {
			return res, err
		}
		delay := r.backoff << attempt
		r.logger.Debug("retrying tool", "tool", call.Tool, "attempt", attempt+1, "delay", delay, "error", err)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return res, err
			case <-timer.C:
			}
		}
	}
}

type callResult struct {
	res tools.Result
	err error
}

func (r *runner) invokeOnce(ctx context.Context, call task.Call) (tools.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ch := make(chan callResult, 1)
	go func() {
		res, err := r.invoker.Invoke(cctx, call.Tool, call.Args)
		ch <- callResult{res, err}
	}()

	select {
	case cr := <-ch:
		return cr.res, cr.err
	case <-cctx.Done():
		err := tools.Unavailable(call.Tool, fmt.Errorf("call timed out after %s", r.timeout))
		return tools.Result{Success: false, Error: err.Error()}, err
	}
}

func (r *runner) fail(t *task.Task, reason task.Reason, detail string) {
	if err := t.Fail(reason, detail); err != nil {
		r.logger.Error("fail task", "task", t.ID, "reason", reason, "error", err)
		return
	}
	r.statusEvent(t)
}

func (r *runner) failOpen(reason task.Reason, detail string) {
	for _, t := range r.run.Pending() {
		r.fail(t, reason, detail)
	}
}

func (r *runner) statusEvent(t *task.Task) {
	summary := "task " + string(t.Status())
	if t.Reason() != task.ReasonNone {
		summary += " (" + string(t.Reason()) + ")"
	}
	ev := r.event(events.EventStatus, t, summary)
	ev.Error = t.Detail()
	r.sink.Publish(ev)
}

func (r *runner) recordCallError(t *task.Task, step int, tool string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callErrors = append(r.callErrors, CallError{
		TaskID: t.ID, Step: step, Tool: tool, Kind: tools.KindOf(err), Message: err.Error(),
	})
}

func (r *runner) event(typ events.EventType, t *task.Task, summary string) events.Event {
	ev := events.Event{Type: typ, Timestamp: r.now(), RunID: r.run.ID, Summary: summary}
	if t != nil {
		ev.TaskID = t.ID
	}
	return ev
}

// callKey identifies a call by tool name and canonical arguments.
func callKey(c task.Call) string {
	data, err := json.Marshal(c.Args)
	if err != nil {
		return c.Tool + "\x00" + fmt.Sprint(c.Args)
	}
	return c.Tool + "\x00" + string(data)
}

// filterExcluded drops records whose text mentions an excluded keyword.
func filterExcluded(records []evidence.Evidence, keywords []string) []evidence.Evidence {
	if len(keywords) == 0 {
		return records
	}
	out := make([]evidence.Evidence, 0, len(records))
outer:
	for _, e := range records {
		text := strings.ToLower(e.Claim + " " + e.Value + " " + e.Snippet + " " + e.Entity)
		for _, kw := range keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(text, kw) {
				continue outer
			}
		}
		out = append(out, e)
	}
	return out
}

// recentDone snapshots the last n completed tasks in run order.
func recentDone(run *task.Run, n int) []task.Record {
	var done []task.Record
	for _, t := range run.Tasks {
		if t.Status() == task.StatusDone {
			done = append(done, t.Record())
		}
	}
	if len(done) > n {
		done = done[len(done)-n:]
	}
	return done
}

func evidenceURLs(records []evidence.Evidence) []string {
	var urls []string
	for _, e := range records {
		urls = append(urls, e.SourceURL)
	}
	return urls
}

func resultText(res tools.Result) string {
	if res.Error != "" {
		return res.Error
	}
	var b strings.Builder
	for i, e := range res.Evidence {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Claim)
	}
	return b.String()
}
