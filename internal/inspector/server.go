// Package inspector serves a read-only HTTP view of runs: the live event
// stream, archived runs with their reports, and the registered tools. It
// also accepts plan approval while a run waits for it.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/store"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

// Runs is the archive view the inspector reads.
type Runs interface {
	Runs() ([]store.Summary, error)
	Archived(id string) (store.Archive, synth.Report, error)
}

// EventLog returns the stored events of a run.
type EventLog interface {
	Events(runID string) ([]events.Event, error)
}

// ApprovalAction is an approve or reject decision sent from a client.
type ApprovalAction struct {
	Action   string `json:"action"` // "approve" or "reject"
	Feedback string `json:"feedback,omitempty"`
}

// Approved reports whether the action approves the plan.
func (a ApprovalAction) Approved() bool { return a.Action == "approve" }

// Server is the inspector HTTP server.
type Server struct {
	bus       *events.MemoryBus
	runs      Runs
	log       EventLog
	registry  *tools.Registry
	mux       *http.ServeMux
	startTime time.Time

	approvalCh chan ApprovalAction
}

// New creates an inspector server. log may be nil.
func New(bus *events.MemoryBus, runs Runs, log EventLog, registry *tools.Registry) *Server {
	s := &Server{
		bus:        bus,
		runs:       runs,
		log:        log,
		registry:   registry,
		mux:        http.NewServeMux(),
		startTime:  time.Now(),
		approvalCh: make(chan ApprovalAction, 1),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /events", s.handleStream)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/tools", s.handleTools)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	s.mux.HandleFunc("GET /api/runs/{id}/events", s.handleRunEvents)

	s.mux.HandleFunc("POST /api/approve", s.handleApprove)
	s.mux.HandleFunc("POST /api/reject", s.handleReject)
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Approvals delivers approve and reject actions posted by clients.
func (s *Server) Approvals() <-chan ApprovalAction { return s.approvalCh }

// Serve listens on addr until ctx is done. The bound address is sent on
// ready once the listener is open, so ":0" can be used.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inspector: listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("inspector: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": []string{
			"/events", "/api/status", "/api/history", "/api/tools",
			"/api/runs", "/api/runs/{id}", "/api/runs/{id}/events",
			"POST /api/approve", "POST /api/reject",
		},
	})
}

// handleStream sends the bus history, then live events, as Server-Sent
// Events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, ev := range s.bus.History(time.Time{}) {
		writeEvent(w, ev)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	history := s.bus.History(time.Time{})
	var toolCalls, failures, validations int
	for _, ev := range history {
		switch ev.Type {
		case events.EventToolCall:
			toolCalls++
		case events.EventToolResult:
			if ev.Error != "" {
				failures++
			}
		case events.EventValidation:
			validations++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime":      time.Since(s.startTime).Round(time.Second).String(),
		"events":      len(history),
		"tool_calls":  toolCalls,
		"tool_errors": failures,
		"validations": validations,
		"tools":       len(s.registry.Names()),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if runID := r.URL.Query().Get("run"); runID != "" {
		writeJSON(w, http.StatusOK, s.bus.RunHistory(runID))
		return
	}
	writeJSON(w, http.StatusOK, s.bus.History(time.Time{}))
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	list := s.registry.List()
	infos := make([]map[string]any, len(list))
	for i, t := range list {
		infos[i] = map[string]any{
			"name":         t.Name(),
			"description":  t.Description(),
			"input_schema": t.InputSchema(),
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.Runs()
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	archive, report, err := s.runs.Archived(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": archive, "report": report})
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.log == nil {
		writeJSON(w, http.StatusOK, s.bus.RunHistory(id))
		return
	}
	evs, err := s.log.Events(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, ApprovalAction{Action: "approve"}, "approved")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Feedback string `json:"feedback"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
			return
		}
	}
	s.decide(w, ApprovalAction{Action: "reject", Feedback: body.Feedback}, "rejected")
}

func (s *Server) decide(w http.ResponseWriter, a ApprovalAction, status string) {
	select {
	case s.approvalCh <- a:
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	default:
		writeJSON(w, http.StatusConflict, map[string]string{"status": "no_pending_approval"})
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
