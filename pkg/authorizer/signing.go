package authorizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/keys"
)

// Signature algorithm and canonicalization identifiers carried in
// every SignatureRecord.
const (
	SigAlg              = "HMAC-SHA256"
	SigCanonicalization = "JCS"
)

// SignaturePayload builds the canonical signing payload from an
// authorization's own fields. The executor recomputes this from the
// authorization it received, so every signed field is tamper-evident.
func SignaturePayload(a *contracts.Authorization) map[string]any {
	return map[string]any{
		"command_id":         a.CommandID,
		"projection_id":      a.ProjectionID,
		"cmd_counter":        a.CmdCounter,
		"action_type":        a.ActionType,
		"params":             a.Params,
		"issued_at":          a.IssuedAt.UTC().Format(time.RFC3339Nano),
		"lease_id":           a.LeaseID,
		"lease_valid_for_ms": a.LeaseValidForMS,
		"kman_hash":          a.KmanHash,
		"bset_hash":          a.BsetHash,
		"policy_seq":         a.PolicySeq,
	}
}

// Sign canonicalizes the payload and fills the authorization's
// signature record with the payload hash and HMAC.
func Sign(a *contracts.Authorization, key keys.Key) error {
	canonical, err := canonicalize.JCS(SignaturePayload(a))
	if err != nil {
		return fmt.Errorf("authorizer: canonicalize payload: %w", err)
	}

	mac := hmac.New(sha256.New, key.Secret)
	mac.Write(canonical)

	a.Signature = contracts.SignatureRecord{
		Alg:              SigAlg,
		Canonicalization: SigCanonicalization,
		KeyID:            key.ID,
		PayloadHash:      canonicalize.HashBytes(canonical),
		SigB64:           base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
	return nil
}

// VerifySignature recomputes the canonical payload and HMAC from the
// authorization's fields and compares both the payload hash and the
// signature in constant time.
func VerifySignature(a *contracts.Authorization, key keys.Key) bool {
	if a.Signature.Alg != SigAlg || a.Signature.Canonicalization != SigCanonicalization {
		return false
	}

	canonical, err := canonicalize.JCS(SignaturePayload(a))
	if err != nil {
		return false
	}
	if subtle.ConstantTimeCompare(
		[]byte(canonicalize.HashBytes(canonical)),
		[]byte(a.Signature.PayloadHash)) != 1 {
		return false
	}

	mac := hmac.New(sha256.New, key.Secret)
	mac.Write(canonical)
	expected := mac.Sum(nil)

	got, err := base64.StdEncoding.DecodeString(a.Signature.SigB64)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
