package executor

import (
	"log/slog"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

// Defaults for tool calls.
const (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 2
	DefaultBackoff = 500 * time.Millisecond
)

// Option configures an Executor.
type Option func(*Executor)

// WithSelector sets the tool selection strategy.
func WithSelector(s Selector) Option {
	return func(e *Executor) {
		if s != nil {
			e.selector = s
		}
	}
}

// WithValidator sets the completion validator.
func WithValidator(v *verify.Validator) Option {
	return func(e *Executor) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithSink sets where run-log events go.
func WithSink(s events.Sink) Option {
	return func(e *Executor) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetries sets how often a transient failure is retried and the first
// backoff delay, which doubles per retry.
func WithRetries(n int, backoff time.Duration) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.retries = n
		}
		if backoff >= 0 {
			e.backoff = backoff
		}
	}
}

// WithConcurrency bounds how many tasks make a tool call at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}
