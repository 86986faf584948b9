// Package projector implements the 0a layer: a pure, deterministic
// function from (proposal, policy) to a ProjectedCommand.
//
// The same inputs always produce the same projection (identity field
// aside). Classification never reads the clock, randomness, or any
// state outside the two arguments; deny rules are compiled CEL
// programs restricted to the same inputs. Any failed check
// short-circuits to a veto, and a vetoed command can never be
// authorized downstream.
package projector

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/policy"
)

// Check names, in the order they run. A non-vetoed projection lists
// all of them in checks_passed.
const (
	CheckKmanMembership = "kman_membership"
	CheckBsetExclusion  = "bset_exclusion"
	CheckDenyRules      = "deny_rules"
	CheckRiskTierBound  = "risk_tier_bound"
	CheckArtifactClass  = "artifact_class_policy"
	CheckParameterShape = "parameter_shape"
)

// Project computes the deterministic projection of a proposal against
// a policy snapshot. It never returns an error: every failure mode is
// a veto carried in the returned command.
func Project(env *contracts.ProposalEnvelope, pol *contracts.PolicyState) *contracts.ProjectedCommand {
	cmd := &contracts.ProjectedCommand{
		ProjectionID:  uuid.New().String(),
		ProposalID:    env.ProposalID,
		KmanHash:      pol.KmanHash,
		BsetHash:      pol.BsetHash,
		PolicySeq:     pol.PolicySeq,
		ModeID:        pol.ModeID,
		ClosureActive: closureDescriptor(pol),
		ActionType:    NormalizeAction(env.ActionType),
		Params:        copyParams(env.Params),
		ChecksPassed:  []string{},
	}

	veto := func(reason, detail string) *contracts.ProjectedCommand {
		cmd.Veto = contracts.Veto{IsVeto: true, Reason: reason}
		if detail != "" {
			cmd.Veto.Reason = fmt.Sprintf("%s: %s", reason, detail)
		}
		return cmd
	}

	// 1. Capability manifest membership.
	if !pol.Allows(cmd.ActionType) {
		return veto(contracts.VetoCapabilityNotInKman, "")
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckKmanMembership)

	// 2. Forbidden-action set.
	if pol.Forbidden(cmd.ActionType) {
		return veto(contracts.VetoActionInBset, "")
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckBsetExclusion)

	// 3. Risk tier: policy-declared when known, heuristic otherwise.
	cmd.RiskTier = riskTier(cmd.ActionType, pol)

	// 3b. Governance deny rules. A rule that denies, or cannot be
	// evaluated, vetoes (fail-closed).
	if len(pol.Bset.DenyRules) > 0 {
		rules, err := policy.CompileDenyRules(pol.Bset.DenyRules)
		if err != nil {
			return veto(contracts.VetoActionInBset, "deny rule does not compile")
		}
		for _, rule := range rules {
			denied, _ := rule.Eval(cmd.ActionType, cmd.Params, cmd.RiskTier)
			if denied {
				return veto(contracts.VetoActionInBset, fmt.Sprintf("deny rule %q", rule.Name))
			}
		}
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckDenyRules)

	// 4. Risk tier cap.
	if cmd.RiskTier > pol.Bset.MaxRiskTier {
		return veto(contracts.VetoRiskTierExceedsLimit,
			fmt.Sprintf("tier %d > max %d", cmd.RiskTier, pol.Bset.MaxRiskTier))
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckRiskTierBound)

	// 5. Artifact class and the control-artifact toggle.
	cmd.ArtifactClass = artifactClass(cmd.ActionType)
	if cmd.ArtifactClass == contracts.ArtifactControl && pol.Bset.ControlArtifactsDisabled {
		return veto(contracts.VetoControlArtifactDisabled, "")
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckArtifactClass)

	// 6. Ambiguity check: typed per-action shape plus the blanket rule
	// that no parameter may be null.
	if key, problem := validateParams(cmd.ActionType, cmd.Params); key != "" {
		return veto(contracts.VetoAmbiguousParameters, fmt.Sprintf("%s: %s", key, problem))
	}
	cmd.ChecksPassed = append(cmd.ChecksPassed, CheckParameterShape)

	return cmd
}

// NormalizeAction canonicalizes an action type tag: Unicode NFKC,
// lowercased, trimmed.
func NormalizeAction(actionType string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(actionType)))
}

// copyParams shallow-copies the envelope's params so the projection
// owns its map. Only the params bag crosses the boundary; any other
// envelope field never reaches the command.
func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func closureDescriptor(pol *contracts.PolicyState) string {
	if pol.Bset.ControlArtifactsDisabled {
		return "control_closed"
	}
	return "open"
}

func riskTier(actionType string, pol *contracts.PolicyState) contracts.RiskTier {
	if tier, ok := pol.Kman.Capabilities[actionType]; ok {
		return tier
	}
	switch {
	case strings.Contains(actionType, "payment"), strings.Contains(actionType, "blockchain"):
		return contracts.RiskTierElevated
	case strings.Contains(actionType, "score"), strings.Contains(actionType, "evaluate"):
		return contracts.RiskTierLow
	case strings.Contains(actionType, "snapshot"), strings.Contains(actionType, "read"):
		return contracts.RiskTierLow
	default:
		return contracts.RiskTierNone
	}
}

func artifactClass(actionType string) contracts.ArtifactClass {
	switch {
	case strings.Contains(actionType, "mutate"),
		strings.Contains(actionType, "configure"),
		strings.Contains(actionType, "update"):
		return contracts.ArtifactControl
	case strings.Contains(actionType, "score"),
		strings.Contains(actionType, "payment"),
		strings.Contains(actionType, "blockchain"):
		return contracts.ArtifactData
	default:
		return contracts.ArtifactNA
	}
}
