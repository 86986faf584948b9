package canonicalize

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// asAny widens a generator's result type to `any` so that gen.MapOf
// produces a map[string]any; passing a func returning `any` to Gen.Map
// panics inside gopter, which mistakes it for a *GenResult mapper.
func asAny(g gopter.Gen) gopter.Gen {
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	return func(params *gopter.GenParameters) *gopter.GenResult {
		result := g(params)
		origType := result.ResultType
		result.ResultType = anyType
		if sieve := result.Sieve; sieve != nil {
			// gen.MapOf applies one element sieve to every value; with
			// heterogeneous generators a typed sieve would panic on
			// values of another type, so only sieve matching types.
			result.Sieve = func(v interface{}) bool {
				if v == nil || reflect.TypeOf(v) != origType {
					return true
				}
				return sieve(v)
			}
		}
		return result
	}
}

func unmarshalNumberPreserving(data []byte, v *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func TestJCS_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genFlatMap := gen.MapOf(gen.AlphaString(), gen.OneGenOf(
		asAny(gen.AlphaString()),
		asAny(gen.Int64()),
		asAny(gen.Bool()),
	))

	properties.Property("canonicalization is deterministic", prop.ForAll(
		func(m map[string]any) bool {
			a, errA := JCS(m)
			b, errB := JCS(m)
			return errA == nil && errB == nil && string(a) == string(b)
		},
		genFlatMap,
	))

	properties.Property("canonical form is a fixed point", prop.ForAll(
		func(m map[string]any) bool {
			once, err := JCS(m)
			if err != nil {
				return false
			}
			var decoded any
			if err := unmarshalNumberPreserving(once, &decoded); err != nil {
				return false
			}
			twice, err := JCS(decoded)
			if err != nil {
				return false
			}
			return string(once) == string(twice)
		},
		genFlatMap,
	))

	properties.TestingRun(t)
}
