package handlers

import (
	"encoding/json"
	"fmt"
)

// numberParam coerces the numeric shapes a param can arrive in. In
// process the value keeps its Go type; across a JSON decode it becomes
// float64 or json.Number.
func numberParam(v any) (float64, bool) {
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
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// stringsParam coerces a param into a string slice. JSON decoding
// turns arrays into []any, so both shapes are accepted.
func stringsParam(v any) ([]string, error) {
	switch vs := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), vs...), nil
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a list of strings")
	}
}
