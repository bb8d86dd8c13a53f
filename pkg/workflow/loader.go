package workflow

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML or JSON workflow file. Template variables like {{date}}
// and {{param_name}} are interpolated from params and the workflow's param defaults.
func Load(path string, params map[string]string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read workflow %s: %w", path, err)
	}
	return Parse(data, params)
}

// Parse decodes workflow data with variable interpolation. JSON input is
// accepted since it is valid YAML.
func Parse(data []byte, params map[string]string) (Spec, error) {
	var raw Spec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Spec{}, fmt.Errorf("parse workflow: %w", err)
	}

	vars := buildVarMap(raw.Params, params, time.Now())
	interpolated := interpolateVars(string(data), vars)

	var spec Spec
	if err := yaml.Unmarshal([]byte(interpolated), &spec); err != nil {
		return Spec{}, fmt.Errorf("parse interpolated workflow: %w", err)
	}
	return spec, nil
}

// buildVarMap merges built-in date variables, param defaults and overrides.
func buildVarMap(paramDefs []ParamDef, overrides map[string]string, now time.Time) map[string]string {
	vars := map[string]string{
		"date":     now.Format("2006-01-02"),
		"datetime": now.Format("2006-01-02T15:04:05"),
		"year":     now.Format("2006"),
		"month":    now.Format("01"),
		"day":      now.Format("02"),
	}
	for _, p := range paramDefs {
		if p.Default != nil {
			vars[p.Name] = fmt.Sprintf("%v", p.Default)
		}
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

var templatePattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// interpolateVars replaces {{name}} with its value; unknown names are left.
func interpolateVars(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// ParseParams turns key=value pairs into a param map.
func ParseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid param %q (expected key=value)", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// Marshal encodes a spec as YAML.
func Marshal(s Spec) ([]byte, error) {
	return yaml.Marshal(s)
}
