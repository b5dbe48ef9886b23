package graph

import (
	"reflect"
	"sort"
)

// Values is a string-keyed state container. It is the state type used by
// pipeline definitions, the CLI and the MCP server.
type Values map[string]any

// Clone returns a deep copy. Nested maps and slices are copied; other values
// are copied by assignment.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

// Merge copies additions into v, overwriting existing keys. A nil map is a
// no-op.
func (v Values) Merge(additions map[string]any) {
	for k, val := range additions {
		v[k] = val
	}
}

// Keys returns the keys in sorted order.
func (v Values) Keys() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Int returns v[key] as an int, accepting any numeric type. Missing or
// non-numeric values yield 0.
func (v Values) Int(key string) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case uint:
		return int(n)
	case uint64:
		return int(n)
	}
	return 0
}

// String returns v[key] when it is a string.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// MergeValues merges branch outputs key by key. Each branch contributes only
// the keys it changed relative to base (including deletions); branches are
// applied in node-id order, so a later branch wins a conflicting key.
func MergeValues(base Values, branches []Branch[Values]) (Values, error) {
	out := base.Clone()
	for _, b := range branches {
		for k, val := range b.State {
			if old, ok := base[k]; ok && reflect.DeepEqual(old, val) {
				continue
			}
			out[k] = cloneValue(val)
		}
		for k := range base {
			if _, ok := b.State[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Values:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

// ConcatValues behaves like MergeValues, except that a []any value which a
// branch extended (base value is a prefix of the branch value) contributes
// only its new suffix, so appends from every branch are kept in node-id order.
func ConcatValues(base Values, branches []Branch[Values]) (Values, error) {
	out := base.Clone()
	for _, b := range branches {
		for k, val := range b.State {
			old, had := base[k]
			if had && reflect.DeepEqual(old, val) {
				continue
			}
			if suffix, ok := appendedSuffix(old, val); ok {
				cur, _ := out[k].([]any)
				out[k] = append(cur, cloneValue(suffix).([]any)...)
				continue
			}
			out[k] = cloneValue(val)
		}
		for k := range base {
			if _, ok := b.State[k]; !ok {
				delete(out, k)
			}
		}
	}
	return out, nil
}

func appendedSuffix(old, val any) ([]any, bool) {
	next, ok := val.([]any)
	if !ok {
		return nil, false
	}
	prev, _ := old.([]any)
	if old != nil && prev == nil {
		return nil, false
	}
	if len(next) < len(prev) || (len(prev) > 0 && !reflect.DeepEqual(prev, next[:len(prev)])) {
		return nil, false
	}
	return next[len(prev):], true
}
