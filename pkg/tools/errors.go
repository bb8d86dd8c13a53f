package tools

import (
	"errors"
	"fmt"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// Kind classifies tool failures.
type Kind string

const (
	KindUnknownTool      Kind = "UnknownTool"
	KindInvalidArguments Kind = "InvalidArguments"
	KindUnavailable      Kind = "ToolUnavailable"
	KindFatal            Kind = "ToolFatal"
)

// Error is a classified tool failure.
type Error struct {
	Kind Kind
	Tool string
	Err  error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrUnknownTool      = &Error{Kind: KindUnknownTool}
	ErrInvalidArguments = &Error{Kind: KindInvalidArguments}
	ErrToolUnavailable  = &Error{Kind: KindUnavailable}
	ErrToolFatal        = &Error{Kind: KindFatal}
)

func (e *Error) Error() string {
	switch {
	case e.Tool != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Tool, e.Err)
	case e.Tool != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Tool)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Tool == "" && t.Err == nil
}

// Unavailable marks err as a retryable transient failure.
func Unavailable(tool string, err error) error {
	return &Error{Kind: KindUnavailable, Tool: tool, Err: err}
}

// Fatal marks err as a non-retryable failure.
func Fatal(tool string, err error) error {
	return &Error{Kind: KindFatal, Tool: tool, Err: err}
}

// InvalidArgs reports a schema violation.
func InvalidArgs(tool, format string, args ...any) error {
	return &Error{Kind: KindInvalidArguments, Tool: tool, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind. Unclassified errors count as unavailable.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnavailable
}

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindUnavailable
}

// HTTPStatus classifies a non-2xx API response. Rate limits and server errors
// are retryable; everything else is fatal.
func HTTPStatus(tool string, code int, body string) error {
	err := fmt.Errorf("http %d: %s", code, evidence.Clip(body, 200))
	if code == 429 || code == 408 || code >= 500 {
		return Unavailable(tool, err)
	}
	return Fatal(tool, err)
}

