package projector

import (
	"encoding/json"
	"fmt"
)

// paramSpec describes the required shape of one action's parameters.
// Params are an open map at the envelope boundary; this is where each
// known action gets its strongly-typed contract enforced.
type paramSpec struct {
	field string
	check func(v any) error
}

var paramSpecs = map[string][]paramSpec{
	"score_poc_proposal": {
		{field: "submission_hash", check: wantString},
	},
	"create_payment_session": {
		{field: "amount", check: wantNumber},
	},
	"register_blockchain": {
		{field: "transaction_hash", check: wantString},
	},
}

func wantString(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("must be a string")
	}
	if s == "" {
		return fmt.Errorf("must be non-empty")
	}
	return nil
}

func wantNumber(v any) error {
	switch n := v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return nil
	case json.Number:
		if _, err := n.Float64(); err != nil {
			return fmt.Errorf("must be numeric")
		}
		return nil
	default:
		return fmt.Errorf("must be numeric")
	}
}

// validateParams applies the blanket null rule plus the action's typed
// spec. It returns the offending key and a description on failure.
func validateParams(actionType string, params map[string]any) (key string, problem string) {
	for k, v := range params {
		if v == nil {
			return k, "parameter is null"
		}
	}

	for _, spec := range paramSpecs[actionType] {
		v, present := params[spec.field]
		if !present {
			return spec.field, "required parameter is missing"
		}
		if err := spec.check(v); err != nil {
			return spec.field, err.Error()
		}
	}
	return "", ""
}
