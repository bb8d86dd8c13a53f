package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the tools available to a run, keyed by capability name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Returns an error if the name is already taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = t
	return nil
}

// MustRegister registers tools and panics on duplicates.
func (r *Registry) MustRegister(ts ...Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, &Error{Kind: KindUnknownTool, Tool: name}
	}
	return t, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

// Describe returns a tool's input schema.
func (r *Registry) Describe(name string) (Schema, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return Schema{}, err
	}
	return t.InputSchema(), nil
}

// Names returns all tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all tools sorted by name.
func (r *Registry) List() []Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(names))
	for _, n := range names {
		out = append(out, r.tools[n])
	}
	return out
}

// Invoke resolves, validates and runs a tool. Unclassified tool errors are
// treated as transient. Evidence is validated before it leaves the registry.
// On error the returned Result carries Success=false and the message.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return failed(err), err
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArgs(name, t.InputSchema(), args); err != nil {
		return failed(err), err
	}

	res, err := t.Invoke(ctx, args)
	if err != nil {
		var te *Error
		if !errors.As(err, &te) {
			err = Unavailable(name, err)
		}
		return failed(err), err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "tool reported failure"
		}
		err := Fatal(name, fmt.Errorf("%s", msg))
		return failed(err), err
	}

	valid := res.Evidence[:0:0]
	for _, e := range res.Evidence {
		if e.Validate() != nil {
			continue
		}
		if e.Tool == "" {
			e.Tool = name
		}
		valid = append(valid, e)
	}
	res.Evidence = valid
	return res, nil
}

func failed(err error) Result {
	return Result{Success: false, Evidence: nil, Error: err.Error()}
}
