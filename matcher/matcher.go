// Package matcher implements the structural subset test used to decide
// whether an incoming event triggers a pipeline. A pattern is a partial
// template: every key it names must be present in the value (recursively),
// extra keys in the value are ignored.
package matcher

import "fmt"

// Match reports whether value satisfies pattern.
//
// The relation is a structural subset:
//   - a map pattern requires a map value containing every pattern key, with
//     each pattern entry matching recursively;
//   - a list pattern requires a list value where each pattern element is
//     matched by at least one value element (order-free, existential);
//   - any other pattern matches by equality;
//   - a nil pattern matches everything.
//
// Match is pure and performs no I/O. Recursion depth is bounded by the
// nesting of the pattern, which for webhook payloads stays well inside
// stack limits.
func Match(value, pattern any) bool {
	if pattern == nil {
		return true
	}

	switch p := pattern.(type) {
	case map[string]any:
		vm, ok := asStringMap(value)
		if !ok {
			return false
		}
		for k, pv := range p {
			vv, present := vm[k]
			if !present {
				return false
			}
			if !Match(vv, pv) {
				return false
			}
		}
		return true

	case []any:
		vl, ok := value.([]any)
		if !ok {
			return false
		}
		for _, pe := range p {
			if !anyElementMatches(vl, pe) {
				return false
			}
		}
		return true

	default:
		return equal(value, pattern)
	}
}

// anyElementMatches reports whether some element of values matches pattern.
func anyElementMatches(values []any, pattern any) bool {
	for _, v := range values {
		if Match(v, pattern) {
			return true
		}
	}
	return false
}

// asStringMap normalizes map values to string keys. JSON decoding already
// yields map[string]any; maps built programmatically may carry other key
// types, which are coerced via fmt.Sprint so that "app_id" matches a
// non-string key of the same spelling.
func asStringMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// equal compares two scalar values, treating numeric types loosely so that
// an int pattern matches the float64 a JSON decode produces.
func equal(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
