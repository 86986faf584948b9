package contracts

import "time"

// DeterminismRecord pins everything needed to reproduce an evaluation:
// the model and provider, the exact prompt and content hashes, the
// scoring configuration and the archive snapshot the evaluator saw.
type DeterminismRecord struct {
	Model             string  `json:"model"`
	Provider          string  `json:"provider"`
	Temperature       float64 `json:"temperature"`
	PromptHash        string  `json:"prompt_hash"`
	ContentHash       string  `json:"content_hash"`
	ScoreConfigID     string  `json:"score_config_id"`
	ArchiveSnapshotID string  `json:"archive_snapshot_id"`
}

// TraceRecord ties a proposal back to the evaluation run that produced it.
type TraceRecord struct {
	RunID       string            `json:"run_id"`
	InputsHash  string            `json:"inputs_hash"`
	Determinism DeterminismRecord `json:"determinism"`
}

// ProposalEnvelope is the untrusted output of evaluation. It carries
// intent but no authority: it is an input to projection, never a record
// of truth, and is immutable once assembled.
type ProposalEnvelope struct {
	ProposalID string         `json:"proposal_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Intent     string         `json:"intent"`
	ActionType string         `json:"action_type"`
	Params     map[string]any `json:"params"`
	Trace      TraceRecord    `json:"trace"`
}
