package verify

import (
	"sort"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
)

// Resolve picks the record to report for a field: highest confidence wins,
// and on an exact tie the most recently collected record wins.
func Resolve(records []evidence.Evidence, field string) (evidence.Evidence, bool) {
	return resolve(records, field, func(evidence.Evidence) bool { return true })
}

// ResolveEntity is Resolve restricted to records about one entity.
func ResolveEntity(records []evidence.Evidence, entity, field string) (evidence.Evidence, bool) {
	return resolve(records, field, func(e evidence.Evidence) bool { return e.Entity == entity })
}

func resolve(records []evidence.Evidence, field string, keep func(evidence.Evidence) bool) (evidence.Evidence, bool) {
	var best evidence.Evidence
	found := false
	for _, e := range records {
		if e.Field != field || e.Value == "" || !keep(e) {
			continue
		}
		if !found || e.Confidence >= best.Confidence {
			best = e
			found = true
		}
	}
	return best, found
}

// Conflicts reports (entity, field) pairs for which more than one distinct
// value was collected. Values keep collection order.
func Conflicts(records []evidence.Evidence) []Conflict {
	type slot struct{ entity, field string }
	values := make(map[slot][]string)
	seen := make(map[string]bool)
	for _, e := range records {
		if e.Field == "" || e.Value == "" {
			continue
		}
		key := e.Entity + "\x00" + e.Field + "\x00" + e.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		s := slot{e.Entity, e.Field}
		values[s] = append(values[s], e.Value)
	}

	var out []Conflict
	for s, vs := range values {
		if len(vs) < 2 {
			continue
		}
		chosen, _ := ResolveEntity(records, s.entity, s.field)
		out = append(out, Conflict{Entity: s.entity, Field: s.field, Values: vs, Chosen: chosen.Value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Field < out[j].Field
	})
	return out
}
