package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestHandlerMethodNotFound(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "2.0", ID: 1, Method: "nonexistent"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestHandlerInvalidVersion(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "1.0", ID: 1, Method: "test"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error for invalid version")
	}
	if resp.Error.Code != CodeInvalidRequest {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeInvalidRequest)
	}
}

func TestHandlerSuccess(t *testing.T) {
	h := NewHandler()
	h.Register("echo", func(_ context.Context, params json.RawMessage) (any, *Error) {
		return map[string]string{"echo": string(params)}, nil
	})

	req := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "echo",
		Params:  json.RawMessage(`"hello"`),
	}

	resp := h.Handle(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]string)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if result["echo"] != `"hello"` {
		t.Errorf("echo = %q", result["echo"])
	}
}

func TestHandlerError(t *testing.T) {
	h := NewHandler()
	h.Register("fail", func(context.Context, json.RawMessage) (any, *Error) {
		return nil, &Error{Code: CodeRunFailed, Message: "boom"}
	})

	req := Request{JSONRPC: "2.0", ID: 2, Method: "fail"}
	resp := h.Handle(context.Background(), req)

	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeRunFailed {
		t.Errorf("Code = %d", resp.Error.Code)
	}
	if resp.ID != 2 {
		t.Errorf("ID = %v", resp.ID)
	}
}

func TestHandleRawParseError(t *testing.T) {
	h := NewHandler()
	resp, _ := h.HandleRaw(context.Background(), []byte(`{invalid json`))

	if resp.Error == nil {
		t.Fatal("expected parse error")
	}
	if resp.Error.Code != CodeParseError {
		t.Errorf("Code = %d", resp.Error.Code)
	}
}

func TestParseParams(t *testing.T) {
	raw := json.RawMessage(`{"id":"latest","format":"csv"}`)
	params, err := ParseParams[RunsGetParams](raw)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if params.ID != "latest" || params.Format != "csv" {
		t.Errorf("params = %+v", params)
	}
}

func TestParseParamsNil(t *testing.T) {
	params, err := ParseParams[RunsGetParams](nil)
	if err != nil {
		t.Fatalf("ParseParams(nil): %v", err)
	}
	if params.ID != "" {
		t.Errorf("expected empty id, got %q", params.ID)
	}
}

func TestParseParamsInvalid(t *testing.T) {
	_, err := ParseParams[RunsGetParams](json.RawMessage(`"not an object"`))
	if err == nil {
		t.Fatal("expected error for invalid params")
	}
	if err.Code != CodeInvalidParams {
		t.Errorf("Code = %d", err.Code)
	}
}

func TestHandlerMethodsSorted(t *testing.T) {
	h := NewHandler()
	h.Register("b", func(context.Context, json.RawMessage) (any, *Error) { return nil, nil })
	h.Register("a", func(context.Context, json.RawMessage) (any, *Error) { return nil, nil })

	methods := h.Methods()
	if len(methods) != 2 || methods[0] != "a" {
		t.Errorf("Methods() = %v", methods)
	}
}

func TestServe(t *testing.T) {
	h := NewHandler()
	h.Register("ping", func(context.Context, json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		``,
		`{"jsonrpc":"2.0","method":"ping"}`,
		`{broken`,
		`{"jsonrpc":"2.0","id":"x","method":"missing"}`,
	}, "\n")
	var out bytes.Buffer
	if err := h.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("responses = %d, want 3 (notification answered silently):\n%s", len(lines), out.String())
	}
	var first Response
	json.Unmarshal([]byte(lines[0]), &first)
	if first.Result != "pong" {
		t.Errorf("first = %+v", first)
	}
	for i, code := range []int{CodeParseError, CodeMethodNotFound} {
		var r Response
		json.Unmarshal([]byte(lines[i+1]), &r)
		if r.Error == nil || r.Error.Code != code {
			t.Errorf("line %d = %s", i+1, lines[i+1])
		}
	}
}
