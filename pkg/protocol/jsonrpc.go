package protocol

import (
	"encoding/json"

	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

// JSON-RPC 2.0 message types for serve mode.

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or int; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeToolNotFound    = -32000
	CodeRunFailed       = -32001
	CodeRunCancelled    = -32002
	CodeWorkflowInvalid = -32003
	CodeRunNotFound     = -32004
	CodeNoStore         = -32005
)

// Supported methods.
const (
	MethodToolsList        = "tools.list"
	MethodToolsDescribe    = "tools.describe"
	MethodWorkflowValidate = "workflow.validate"
	MethodWorkflowPlan     = "workflow.plan"
	MethodWorkflowRun      = "workflow.run"
	MethodRunsList         = "runs.list"
	MethodRunsGet          = "runs.get"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// ToolsDescribeParams holds parameters for "tools.describe".
type ToolsDescribeParams struct {
	Name string `json:"name"`
}

// WorkflowParams names a workflow by file path or carries it inline as YAML
// or JSON text. Inline text wins when both are set.
type WorkflowParams struct {
	Path     string            `json:"path,omitempty"`
	Workflow string            `json:"workflow,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

// WorkflowRunParams holds parameters for "workflow.run".
type WorkflowRunParams struct {
	WorkflowParams
	// Format of the rendered Output; defaults to the workflow's deliverable format.
	Format string `json:"format,omitempty"`
}

// RunsGetParams holds parameters for "runs.get". ID may be "latest".
type RunsGetParams struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
}

// ToolInfo describes a tool in the tools.list response.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Credentials []string `json:"required_credentials,omitempty"`
}

// ToolDetail describes a tool with its input schema.
type ToolDetail struct {
	ToolInfo
	InputSchema tools.Schema `json:"input_schema"`
}

// ValidateResult is the workflow.validate response.
type ValidateResult struct {
	Valid  bool                       `json:"valid"`
	Name   string                     `json:"name,omitempty"`
	Goal   workflow.Goal              `json:"goal,omitempty"`
	Errors []workflow.ValidationError `json:"errors,omitempty"`
}

// PlanResult is the workflow.plan response.
type PlanResult struct {
	Steps []workflow.PlanStep `json:"steps"`
}

// RunResult is the workflow.run and runs.get response.
type RunResult struct {
	RunID      string            `json:"run_id"`
	Summary    string            `json:"summary"`
	Outcome    *executor.Outcome `json:"outcome,omitempty"`
	Report     synth.Report      `json:"report"`
	Format     string            `json:"format"`
	Output     string            `json:"output"`
	Scratchpad string            `json:"scratchpad,omitempty"`
}
