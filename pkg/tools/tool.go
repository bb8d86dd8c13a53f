// Package tools defines the capability-keyed tool registry the execution loop
// invokes. Tools turn external lookups into sourced evidence records.
package tools

import (
	"context"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// Tool is a named external capability.
type Tool interface {
	Name() string
	Description() string
	InputSchema() Schema
	RequiredCredentials() []string

	// Invoke runs the tool. Zero evidence with Success=true means no results
	// were found, which is not an error.
	Invoke(ctx context.Context, args map[string]any) (Result, error)
}

// Result is what a tool call returns at the invoker boundary.
type Result struct {
	Success  bool                `json:"success"`
	Evidence []evidence.Evidence `json:"evidence"`
	Error    string              `json:"error,omitempty"`
}

// Schema describes the expected argument shape of a tool.
type Schema struct {
	Type       string                 `json:"type"`
	Properties map[string]SchemaField `json:"properties"`
	Required   []string               `json:"required"`
}

// SchemaField describes a single argument.
type SchemaField struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Func adapts a function to the Tool interface.
type Func struct {
	ToolName    string
	Desc        string
	Schema      Schema
	Credentials []string
	Fn          func(ctx context.Context, args map[string]any) (Result, error)
}

func (f *Func) Name() string                  { return f.ToolName }
func (f *Func) Description() string           { return f.Desc }
func (f *Func) InputSchema() Schema           { return f.Schema }
func (f *Func) RequiredCredentials() []string { return f.Credentials }

func (f *Func) Invoke(ctx context.Context, args map[string]any) (Result, error) {
	return f.Fn(ctx, args)
}

// Found wraps evidence into a successful result.
func Found(records ...evidence.Evidence) Result {
	if records == nil {
		records = []evidence.Evidence{}
	}
	return Result{Success: true, Evidence: records}
}
