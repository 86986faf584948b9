package contracts

import "time"

// SignatureRecord describes how an authorization payload was signed.
// KeyID is carried so authorizations signed under a since-rotated key
// can still be verified against their original key during the lease.
type SignatureRecord struct {
	Alg              string `json:"alg"`
	Canonicalization string `json:"canonicalization"`
	KeyID            string `json:"key_id"`
	PayloadHash      string `json:"payload_hash"`
	SigB64           string `json:"sig_b64"`
}

// Authorization is a minted, time-bounded, signed grant of authority to
// perform exactly one action exactly once. It is immutable after
// minting and safe to share across goroutines.
type Authorization struct {
	CommandID       string          `json:"command_id"`
	ProjectionID    string          `json:"projection_id"`
	IssuedAt        time.Time       `json:"issued_at"`
	LeaseID         string          `json:"lease_id"`
	LeaseValidForMS int64           `json:"lease_valid_for_ms"`
	CmdCounter      uint64          `json:"cmd_counter"`
	KmanHash        string          `json:"kman_hash"`
	BsetHash        string          `json:"bset_hash"`
	PolicySeq       int64           `json:"policy_seq"`
	ModeID          string          `json:"mode_id"`
	ClosureActive   string          `json:"closure_active"`
	ActionType      string          `json:"action_type"`
	Params          map[string]any  `json:"params"`
	Signature       SignatureRecord `json:"signature"`
}

// LeaseExpiry returns the instant this authorization becomes inert.
func (a *Authorization) LeaseExpiry() time.Time {
	return a.IssuedAt.Add(time.Duration(a.LeaseValidForMS) * time.Millisecond)
}
