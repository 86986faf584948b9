package contracts

import "time"

// Verification records which executor checks passed. A flag is set
// only on success of its check; all four are true only on a clean run.
type Verification struct {
	CounterVerified   bool `json:"counter_verified"`
	LeaseVerified     bool `json:"lease_verified"`
	PolicyVerified    bool `json:"policy_verified"`
	SignatureVerified bool `json:"signature_verified"`
}

// ExecutionResult is the terminal record of an authorization attempt,
// written exactly once to the audit log whether or not the handler ran.
type ExecutionResult struct {
	Success      bool         `json:"success"`
	CommandID    string       `json:"command_id"`
	ActionType   string       `json:"action_type"`
	ExecutedAt   time.Time    `json:"executed_at"`
	DurationMS   int64        `json:"duration_ms"`
	Result       any          `json:"result,omitempty"`
	Error        *GateError   `json:"error,omitempty"`
	Verification Verification `json:"verification"`
}
