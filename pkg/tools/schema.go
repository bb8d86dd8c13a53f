package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValidateArgs checks args against the schema: required fields present and
// non-empty, no unexpected fields, and declared JSON types respected.
func ValidateArgs(tool string, s Schema, args map[string]any) error {
	for _, name := range s.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return InvalidArgs(tool, "missing required argument %q", name)
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			return InvalidArgs(tool, "argument %q is empty", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field, ok := s.Properties[name]
		if !ok {
			if len(s.Properties) == 0 {
				continue
			}
			return InvalidArgs(tool, "unexpected argument %q", name)
		}
		if v := args[name]; v != nil && !matchesType(field.Type, v) {
			return InvalidArgs(tool, "argument %q must be %s, got %T", name, field.Type, v)
		}
	}
	return nil
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64, json.Number:
			return true
		}
		return false
	case "array":
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

// String returns a string argument or "".
func String(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an integer argument or def.
func Int(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Strings returns a list argument. A single string becomes a one-item list.
func Strings(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}
