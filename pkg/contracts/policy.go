package contracts

// Kman is the capability manifest: the allow-list of executable action
// types and their policy-declared risk tiers.
type Kman struct {
	Version      string           `json:"version"`
	Capabilities map[string]RiskTier `json:"capabilities"`
}

// DenyRule is a governance-authored veto expression evaluated during
// projection. Expressions see only (action, params, risk_tier) so
// evaluation stays deterministic.
type DenyRule struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

// Bset is the forbidden-action set and the policy-wide caps that bound
// what any projection may authorize.
type Bset struct {
	ForbiddenActions         []string   `json:"forbidden_actions"`
	ControlArtifactsDisabled bool       `json:"control_artifacts_disabled"`
	MaxRiskTier              RiskTier   `json:"max_risk_tier"`
	DenyRules                []DenyRule `json:"deny_rules,omitempty"`
}

// LeasePolicy bounds minted lease durations, in milliseconds.
type LeasePolicy struct {
	DefaultMS        int64            `json:"default_ms"`
	MinMS            int64            `json:"min_ms"`
	MaxMS            int64            `json:"max_ms"`
	ActionCeilingsMS map[string]int64 `json:"action_ceilings_ms,omitempty"`
}

// PolicyState is an immutable, versioned snapshot of the live policy.
// It is produced whole by the policy store (never mutated in place);
// advancing PolicySeq implicitly invalidates every outstanding
// authorization minted under the previous snapshot.
type PolicyState struct {
	PolicySeq int64       `json:"policy_seq"`
	KmanHash  string      `json:"kman_hash"`
	BsetHash  string      `json:"bset_hash"`
	Kman      Kman        `json:"kman_content"`
	Bset      Bset        `json:"bset_content"`
	ModeID    string      `json:"mode_id"`
	Lease     LeasePolicy `json:"lease"`
}

// Allows reports whether the action type is in the capability manifest.
func (p *PolicyState) Allows(actionType string) bool {
	_, ok := p.Kman.Capabilities[actionType]
	return ok
}

// Forbidden reports whether the action type is in the forbidden set.
func (p *PolicyState) Forbidden(actionType string) bool {
	for _, a := range p.Bset.ForbiddenActions {
		if a == actionType {
			return true
		}
	}
	return false
}
