package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// Deny rules are CEL expressions evaluated during projection. The
// environment exposes only the projected action, its parameters, and
// the computed risk tier; wall-clock and randomness never enter the
// evaluation, so the projector stays deterministic.
var ruleEnv = mustRuleEnv()

func mustRuleEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("params", cel.DynType),
		cel.Variable("risk_tier", cel.IntType),
	)
	if err != nil {
		panic(fmt.Sprintf("policy: cel environment: %v", err))
	}
	return env
}

// CompiledRule is a deny rule ready for evaluation.
type CompiledRule struct {
	Name    string
	program cel.Program
}

// CompileDenyRules compiles every rule, failing on the first bad
// expression. A rule that does not compile must never reach projection.
func CompileDenyRules(rules []contracts.DenyRule) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	for _, rule := range rules {
		ast, issues := ruleEnv.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("policy: deny rule %q: compile: %w", rule.Name, issues.Err())
		}
		prg, err := ruleEnv.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("policy: deny rule %q: program: %w", rule.Name, err)
		}
		compiled = append(compiled, CompiledRule{Name: rule.Name, program: prg})
	}
	return compiled, nil
}

// Eval runs the rule. A true result means the rule denies the action.
// Evaluation errors deny as well: a rule that cannot be evaluated must
// not silently pass (fail-closed).
func (r *CompiledRule) Eval(action string, params map[string]any, riskTier contracts.RiskTier) (denied bool, err error) {
	out, _, err := r.program.Eval(map[string]any{
		"action":    action,
		"params":    params,
		"risk_tier": int64(riskTier),
	})
	if err != nil {
		return true, fmt.Errorf("policy: deny rule %q: eval: %w", r.Name, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return true, fmt.Errorf("policy: deny rule %q: result is not bool", r.Name)
	}
	return val, nil
}
