package projector

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/policy"
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

// Projection must be a pure function of (proposal, policy): for any
// generated action type and params bag, projecting twice yields the
// same command bytes (identity aside) and the same veto verdict.
func TestProject_DeterminismProperty(t *testing.T) {
	state := &contracts.PolicyState{
		PolicySeq: 1,
		ModeID:    "standard",
		Kman: contracts.Kman{
			Version: "1.0.0",
			Capabilities: map[string]contracts.RiskTier{
				"score_poc_proposal": contracts.RiskTierLow,
			},
		},
		Bset:  contracts.Bset{MaxRiskTier: contracts.RiskTierElevated},
		Lease: contracts.LeasePolicy{DefaultMS: 30000, MinMS: 1000, MaxMS: 120000},
	}
	require.NoError(t, policy.Seal(state))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	genParams := gen.MapOf(gen.Identifier(), gen.OneGenOf(
		asAny(gen.AlphaString()),
		asAny(gen.Float64Range(-1e6, 1e6)),
		asAny(gen.Bool()),
	))

	properties.Property("projection is deterministic", prop.ForAll(
		func(action string, params map[string]any) bool {
			env := &contracts.ProposalEnvelope{
				ProposalID: "prop-p",
				ActionType: action,
				Params:     params,
				Trace:      contracts.TraceRecord{RunID: "r", InputsHash: "i"},
			}

			a := Project(env, state)
			b := Project(env, state)
			a.ProjectionID = ""
			b.ProjectionID = ""

			ja, errA := canonicalize.JCS(a)
			jb, errB := canonicalize.JCS(b)
			return errA == nil && errB == nil && string(ja) == string(jb)
		},
		gen.Identifier(),
		genParams,
	))

	properties.TestingRun(t)
}
