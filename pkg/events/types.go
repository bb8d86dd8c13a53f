package events

import (
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// EventType identifies the kind of run-log entry.
type EventType string

const (
	EventInit       EventType = "init"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventValidation EventType = "validation"
	EventStatus     EventType = "status"
	EventFinal      EventType = "final"
)

// Event is one append-only run-log record.
type Event struct {
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
	Step         int            `json:"step,omitempty"`
	Tool         string         `json:"tool_name,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
	Result       string         `json:"result,omitempty"`
	Summary      string         `json:"summary"`
	EvidenceURLs []string       `json:"evidence_urls,omitempty"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty"`
	Data         any            `json:"data,omitempty"`
}

// NewEvent creates an Event with the current timestamp.
func NewEvent(typ EventType, summary string) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Summary:   summary,
	}
}

// MaxResultLen caps the Result text stored per event.
const MaxResultLen = 500

// Truncate shortens s to MaxResultLen bytes on a rune boundary.
func Truncate(s string) string {
	return evidence.Clip(s, MaxResultLen)
}
