package contracts

// RiskTier is the 0-3 severity classification of an action.
type RiskTier int

// Risk tiers, lowest to highest.
const (
	RiskTierNone     RiskTier = 0
	RiskTierLow      RiskTier = 1
	RiskTierElevated RiskTier = 2
	RiskTierCritical RiskTier = 3
)

// ArtifactClass says whether an action writes data or changes control
// behavior of the system.
type ArtifactClass string

const (
	ArtifactData    ArtifactClass = "data"
	ArtifactControl ArtifactClass = "control"
	ArtifactNA      ArtifactClass = "na"
)

// Veto is the projector's refusal descriptor. A command with
// Veto.IsVeto set must never be authorized.
type Veto struct {
	IsVeto bool   `json:"is_veto"`
	Reason string `json:"reason,omitempty"`
}

// ProjectedCommand is the deterministic projection of a proposal
// against a policy snapshot. The kman/bset hashes and policy_seq
// record exactly which policy the classification was computed under.
type ProjectedCommand struct {
	ProjectionID    string         `json:"projection_id"`
	ProposalID      string         `json:"proposal_id"`
	KmanHash        string         `json:"kman_hash"`
	BsetHash        string         `json:"bset_hash"`
	PolicySeq       int64          `json:"policy_seq"`
	ModeID          string         `json:"mode_id"`
	ClosureActive   string         `json:"closure_active"`
	ActionType      string         `json:"action_type"`
	Params          map[string]any `json:"params"`
	RiskTier        RiskTier       `json:"risk_tier"`
	ArtifactClass   ArtifactClass  `json:"artifact_class"`
	ArtifactSinkRef string         `json:"artifact_sink_ref,omitempty"`
	ChecksPassed    []string       `json:"checks_passed"`
	Veto            Veto           `json:"veto"`
}
