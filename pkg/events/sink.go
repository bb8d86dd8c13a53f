package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink receives run-log events. Implementations must be safe for concurrent
// Publish calls.
type Sink interface {
	Publish(event Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Multi fans events out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// Scratchpad appends events as JSON lines to a per-run file. Appends are
// serialized so events from parallel workers never interleave.
type Scratchpad struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
	err  error
}

// ScratchpadPath returns dir/<YYYY-MM-DD-HHMMSS>_<runID>.jsonl.
func ScratchpadPath(dir, runID string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", at.Format("2006-01-02-150405"), runID))
}

// OpenScratchpad creates the scratchpad file, and its directory if needed.
func OpenScratchpad(path string) (*Scratchpad, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create scratchpad dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open scratchpad %s: %w", path, err)
	}
	return &Scratchpad{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the file path.
func (s *Scratchpad) Path() string { return s.path }

// Publish writes one line and flushes it. The first write error is kept and
// reported by Err and Close.
func (s *Scratchpad) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.f == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		s.err = fmt.Errorf("marshal event: %w", err)
		return
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		s.err = err
		return
	}
	s.err = s.w.Flush()
}

// Err returns the first write error, if any.
func (s *Scratchpad) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes and closes the file.
func (s *Scratchpad) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return s.err
	}
	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f = nil
	switch {
	case s.err != nil:
		return s.err
	case flushErr != nil:
		return flushErr
	default:
		return closeErr
	}
}

// ReadScratchpad loads every event from a JSONL file.
func ReadScratchpad(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scratchpad %s: %w", path, err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("parse scratchpad line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
