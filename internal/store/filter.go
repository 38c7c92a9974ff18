// ABOUTME: Query filters over domain rows with equality and set-membership conditions
// ABOUTME: Shared by the SQLite adapter, the mock store and the in-memory model

package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Op is a filter operator
type Op string

const (
	OpIn    Op = "$in"
	OpNotIn Op = "$nin"
)

// Cond is a set-membership condition on one key
type Cond struct {
	Op     Op
	Values []any
}

// In matches rows whose value is one of values
func In[T any](values ...T) Cond {
	return Cond{Op: OpIn, Values: toAny(values)}
}

// NotIn matches rows whose value is absent or not one of values
func NotIn[T any](values ...T) Cond {
	return Cond{Op: OpNotIn, Values: toAny(values)}
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Filter maps keys to either a scalar (equality) or a Cond.
// A nil or empty filter matches everything.
type Filter map[string]any

// Keys returns the filter keys in sorted order
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Match reports whether the doc satisfies every condition of the filter
func (f Filter) Match(doc *Doc) bool {
	for key, want := range f {
		got, present := doc.Get(key)
		switch c := want.(type) {
		case Cond:
			found := present && containsValue(c.Values, got)
			if c.Op == OpIn && !found {
				return false
			}
			if c.Op == OpNotIn && found {
				return false
			}
		default:
			if !present || !equalValues(got, want) {
				return false
			}
		}
	}
	return true
}

// ToMap converts the filter to a plain map suitable for wire encoding
func (f Filter) ToMap() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if c, ok := v.(Cond); ok {
			out[k] = map[string]any{string(c.Op): c.Values}
			continue
		}
		out[k] = v
	}
	return out
}

// FilterFromMap is the inverse of Filter.ToMap
func FilterFromMap(m map[string]any) (Filter, error) {
	f := make(Filter, len(m))
	for k, v := range m {
		nested, ok := v.(map[string]any)
		if !ok {
			f[k] = v
			continue
		}
		if len(nested) != 1 {
			return nil, fmt.Errorf("filter key %q: expected a single operator", k)
		}
		for op, raw := range nested {
			values, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("filter key %q: operator %s expects a list", k, op)
			}
			switch Op(op) {
			case OpIn, OpNotIn:
				f[k] = Cond{Op: Op(op), Values: values}
			default:
				return nil, fmt.Errorf("filter key %q: unsupported operator %s", k, op)
			}
		}
	}
	return f, nil
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if equalValues(candidate, v) {
			return true
		}
	}
	return false
}

// equalValues compares scalars, treating all numeric types as float64
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validKey reports whether an attribute key is safe to embed in a JSON path
func validKey(key string) bool {
	return keyPattern.MatchString(key)
}

// sanitizeKey keeps the leading underscore of column keys so that _class and
// an attribute named class get different index names
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, key)
}
