package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

func searchStub(fn func(ctx context.Context, args map[string]any) (Result, error)) *Func {
	return &Func{
		ToolName: "web_search",
		Desc:     "stub search",
		Schema: Schema{
			Type: "object",
			Properties: map[string]SchemaField{
				"query":       {Type: "string"},
				"num_results": {Type: "integer"},
			},
			Required: []string{"query"},
		},
		Fn: fn,
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	stub := searchStub(nil)
	if err := r.Register(stub); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(stub); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if _, err := r.Resolve("web_search"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, err := r.Resolve("crystal_ball")
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "web_search" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRegistryInvoke(t *testing.T) {
	good, _ := evidence.New(evidence.Params{Claim: "Acme is hiring", SourceURL: "https://jobs.example.com/acme", Confidence: 0.7})

	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		fn       func(context.Context, map[string]any) (Result, error)
		wantKind Kind
		wantN    int
	}{
		{
			name:     "unknown tool",
			tool:     "nope",
			wantKind: KindUnknownTool,
		},
		{
			name:     "missing required",
			tool:     "web_search",
			args:     map[string]any{},
			wantKind: KindInvalidArguments,
		},
		{
			name:     "wrong type",
			tool:     "web_search",
			args:     map[string]any{"query": "acme", "num_results": "ten"},
			wantKind: KindInvalidArguments,
		},
		{
			name:     "unexpected argument",
			tool:     "web_search",
			args:     map[string]any{"query": "acme", "verbose": true},
			wantKind: KindInvalidArguments,
		},
		{
			name: "no results is success",
			tool: "web_search",
			args: map[string]any{"query": "acme"},
			fn: func(context.Context, map[string]any) (Result, error) {
				return Found(), nil
			},
		},
		{
			name: "evidence passes through with tool stamped",
			tool: "web_search",
			args: map[string]any{"query": "acme", "num_results": float64(5)},
			fn: func(context.Context, map[string]any) (Result, error) {
				bad := evidence.Evidence{Claim: "no source", Confidence: 0.9}
				return Found(good, bad), nil
			},
			wantN: 1,
		},
		{
			name: "plain error is unavailable",
			tool: "web_search",
			args: map[string]any{"query": "acme"},
			fn: func(context.Context, map[string]any) (Result, error) {
				return Result{}, errors.New("connection reset")
			},
			wantKind: KindUnavailable,
		},
		{
			name: "fatal stays fatal",
			tool: "web_search",
			args: map[string]any{"query": "acme"},
			fn: func(context.Context, map[string]any) (Result, error) {
				return Result{}, Fatal("web_search", errors.New("bad api key"))
			},
			wantKind: KindFatal,
		},
		{
			name: "unsuccessful result is fatal",
			tool: "web_search",
			args: map[string]any{"query": "acme"},
			fn: func(context.Context, map[string]any) (Result, error) {
				return Result{Success: false, Error: "quota exceeded"}, nil
			},
			wantKind: KindFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.MustRegister(searchStub(tt.fn))

			res, err := r.Invoke(context.Background(), tt.tool, tt.args)
			if tt.wantKind != "" {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("expected kind %s, got %v", tt.wantKind, err)
				}
				if res.Success || res.Error == "" {
					t.Errorf("failed call should carry error result, got %+v", res)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Success || len(res.Evidence) != tt.wantN {
				t.Fatalf("result = %+v, want %d evidence", res, tt.wantN)
			}
			for _, e := range res.Evidence {
				if e.Tool != "web_search" {
					t.Errorf("tool not stamped: %+v", e)
				}
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{429, true},
		{503, true},
		{500, true},
		{401, false},
		{403, false},
		{400, false},
	}
	for _, tt := range tests {
		err := HTTPStatus("serper", tt.code, "body")
		if Retryable(err) != tt.retryable {
			t.Errorf("HTTPStatus(%d) retryable = %v, want %v", tt.code, Retryable(err), tt.retryable)
		}
	}

	body := strings.Repeat("日本", 100)
	if msg := HTTPStatus("serper", 500, body).Error(); !utf8.ValidString(msg) || !strings.HasSuffix(msg, "...") {
		t.Errorf("status error split a rune: %q", msg)
	}

	wrapped := Unavailable("x", errors.New("boom"))
	if !errors.Is(wrapped, ErrToolUnavailable) || errors.Is(wrapped, ErrToolFatal) {
		t.Errorf("errors.Is mismatch for %v", wrapped)
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"q":     " acme ",
		"n":     float64(7),
		"s":     "12",
		"list":  []any{"a", " ", "b"},
		"one":   "solo",
		"slice": []string{"x"},
	}
	if String(args, "q") != "acme" || String(args, "missing") != "" {
		t.Error("String helper")
	}
	if Int(args, "n", 0) != 7 || Int(args, "s", 0) != 12 || Int(args, "missing", 3) != 3 {
		t.Error("Int helper")
	}
	if got := Strings(args, "list"); len(got) != 2 {
		t.Errorf("Strings(list) = %v", got)
	}
	if got := Strings(args, "one"); len(got) != 1 || got[0] != "solo" {
		t.Errorf("Strings(one) = %v", got)
	}
	if got := Strings(args, "slice"); len(got) != 1 {
		t.Errorf("Strings(slice) = %v", got)
	}
}
