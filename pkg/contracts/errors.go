package contracts

import "fmt"

// Veto reason codes emitted by the projector. A vetoed command is
// non-authorizable; these never cross the gate as raw errors.
const (
	VetoCapabilityNotInKman     = "capability_not_in_kman"
	VetoActionInBset            = "action_in_bset"
	VetoRiskTierExceedsLimit    = "risk_tier_exceeds_limit"
	VetoControlArtifactDisabled = "control_artifact_disabled"
	VetoAmbiguousParameters     = "ambiguous_parameters"
)

// Stage error codes. Every denial a caller can branch on is one of these.
const (
	CodeProposalInvalid       = "proposal_invalid"
	CodeCannotAuthorizeVetoed = "cannot_authorize_vetoed"
	CodeSignatureInvalid      = "signature_invalid"
	CodeLeaseExpired          = "lease_expired"
	CodeCounterReplay         = "counter_replay"
	CodePolicyMismatch        = "policy_mismatch"
	CodeAuthorizationInvalid  = "authorization_invalid"
	CodeExecutionError        = "execution_error"
)

// GateError is the structured {code, message} pair used at every stage
// boundary. Internal hashes, signatures and secrets never appear in
// Message; Details carries only caller-safe context.
type GateError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewGateError builds a GateError with no details.
func NewGateError(code, message string) *GateError {
	return &GateError{Code: code, Message: message}
}

// WithDetail attaches a single detail key and returns the error.
func (e *GateError) WithDetail(key string, value any) *GateError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
