package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowtae-labs/tsrc/pkg/audit"
	"github.com/bowtae-labs/tsrc/pkg/authorizer"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/counter"
	"github.com/bowtae-labs/tsrc/pkg/keys"
	"github.com/bowtae-labs/tsrc/pkg/policy"
)

// harness wires a live policy store, authorizer and executor so tests
// mint real signed authorizations instead of hand-built ones.
type harness struct {
	keys     *keys.StaticProvider
	policies *policy.MemoryStore
	used     *counter.MemoryUsedSet
	auditLog *audit.Log
	auth     *authorizer.Authorizer
	exec     *Executor
	state    *contracts.PolicyState
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	provider, err := keys.NewStaticProvider("k1", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	state := &contracts.PolicyState{
		PolicySeq: 1,
		Kman: contracts.Kman{
			Version: "1.0.0",
			Capabilities: map[string]contracts.RiskTier{
				"score_poc_proposal": contracts.RiskTierLow,
			},
		},
		Bset: contracts.Bset{
			MaxRiskTier: contracts.RiskTierElevated,
		},
		ModeID: "standard",
		Lease:  contracts.LeasePolicy{DefaultMS: 30000, MinMS: 1000, MaxMS: 120000},
	}
	require.NoError(t, policy.Seal(state))

	policies := policy.NewMemoryStore()
	require.NoError(t, policies.Install(context.Background(), state))

	auditLog := audit.NewLog()
	used := counter.NewMemoryUsedSet()
	exec := New(provider, used, policies, auditLog).
		Register("score_poc_proposal", HandlerFunc(func(ctx context.Context, a *contracts.Authorization) (any, error) {
			return map[string]any{"recorded": true}, nil
		}))

	return &harness{
		keys:     provider,
		policies: policies,
		used:     used,
		auditLog: auditLog,
		auth:     authorizer.New(counter.NewMemoryStore(), provider, auditLog),
		exec:     exec,
		state:    state,
	}
}

func (h *harness) mint(t *testing.T) *contracts.Authorization {
	t.Helper()
	cmd := &contracts.ProjectedCommand{
		ProjectionID: "proj-1",
		ProposalID:   "prop-1",
		KmanHash:     h.state.KmanHash,
		BsetHash:     h.state.BsetHash,
		PolicySeq:    h.state.PolicySeq,
		ModeID:       h.state.ModeID,
		ActionType:   "score_poc_proposal",
		Params:       map[string]any{"submission_hash": "cafe"},
		RiskTier:     contracts.RiskTierLow,
	}
	auth, err := h.auth.Authorize(context.Background(), cmd, h.state.Lease)
	require.NoError(t, err)
	return auth
}

func TestExecute_CleanRunSetsAllFlags(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Nil(t, result.Error)
	assert.Equal(t, auth.CommandID, result.CommandID)
	assert.Equal(t, map[string]any{"recorded": true}, result.Result)

	v := result.Verification
	assert.True(t, v.SignatureVerified)
	assert.True(t, v.LeaseVerified)
	assert.True(t, v.PolicyVerified)
	assert.True(t, v.CounterVerified)

	// One mint entry plus one execution entry for the command.
	entries := h.auditLog.ByCommand(auth.CommandID)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.EntryExecutionResult, entries[1].EntryType)
}

func TestExecute_ReplayDenied(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	first, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.False(t, second.Success)
	require.NotNil(t, second.Error)
	assert.Equal(t, contracts.CodeCounterReplay, second.Error.Code)
	assert.False(t, second.Verification.CounterVerified)
	// Checks before the replay gate still ran.
	assert.True(t, second.Verification.SignatureVerified)
	assert.True(t, second.Verification.LeaseVerified)
}

func TestExecute_LeaseExpired(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	h.exec.WithClock(func() time.Time {
		return auth.LeaseExpiry().Add(time.Second)
	})

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeLeaseExpired, result.Error.Code)
	assert.True(t, result.Verification.SignatureVerified)
	assert.False(t, result.Verification.LeaseVerified)

	// An expired authorization never touches the used set.
	seen, err := h.used.Contains(context.Background(), auth.CmdCounter)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestExecute_TamperedFieldsFailSignature(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	tampered := *auth
	tampered.Params = map[string]any{"submission_hash": "beef"}

	result, err := h.exec.Execute(context.Background(), &tampered)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeSignatureInvalid, result.Error.Code)
	assert.False(t, result.Verification.SignatureVerified)

	// A tampered policy_seq also dies at the signature, before the
	// policy binding check can even see it.
	tampered = *auth
	tampered.PolicySeq = 99
	result, err = h.exec.Execute(context.Background(), &tampered)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeSignatureInvalid, result.Error.Code)
}

func TestExecute_UnknownKeyFailsSignature(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)
	auth.Signature.KeyID = "k9"

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeSignatureInvalid, result.Error.Code)
}

func TestExecute_PolicyBumpInvalidatesOutstanding(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	// Governance installs a new policy after the mint. The signature
	// still verifies; the binding no longer does.
	next := *h.state
	next.PolicySeq = 2
	next.Bset.ForbiddenActions = []string{"score_poc_proposal"}
	require.NoError(t, policy.Seal(&next))
	require.NoError(t, h.policies.Install(context.Background(), &next))

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodePolicyMismatch, result.Error.Code)
	assert.True(t, result.Verification.SignatureVerified)
	assert.True(t, result.Verification.LeaseVerified)
	assert.False(t, result.Verification.PolicyVerified)

	// Denied before the burn: the counter stays unconsumed.
	seen, err := h.used.Contains(context.Background(), auth.CmdCounter)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestExecute_HandlerErrorBurnsCounter(t *testing.T) {
	h := newHarness(t)
	h.exec.Register("score_poc_proposal", HandlerFunc(func(ctx context.Context, a *contracts.Authorization) (any, error) {
		return nil, errors.New("downstream unavailable")
	}))
	auth := h.mint(t)

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeExecutionError, result.Error.Code)
	assert.True(t, result.Verification.CounterVerified)

	// The failed attempt consumed the counter for good.
	retry, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)
	require.NotNil(t, retry.Error)
	assert.Equal(t, contracts.CodeCounterReplay, retry.Error.Code)
}

func TestExecute_HandlerPanicBurnsCounter(t *testing.T) {
	h := newHarness(t)
	h.exec.Register("score_poc_proposal", HandlerFunc(func(ctx context.Context, a *contracts.Authorization) (any, error) {
		panic("handler bug")
	}))
	auth := h.mint(t)

	result, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeExecutionError, result.Error.Code)

	seen, err := h.used.Contains(context.Background(), auth.CmdCounter)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestExecute_UnregisteredActionFails(t *testing.T) {
	h := newHarness(t)
	exec := New(h.keys, counter.NewMemoryUsedSet(), h.policies, h.auditLog)
	auth := h.mint(t)

	result, err := exec.Execute(context.Background(), auth)
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, contracts.CodeExecutionError, result.Error.Code)
}

func TestExecute_StructuralRejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(a *contracts.Authorization)
	}{
		{"missing command_id", func(a *contracts.Authorization) { a.CommandID = "" }},
		{"missing action_type", func(a *contracts.Authorization) { a.ActionType = "" }},
		{"missing lease", func(a *contracts.Authorization) { a.LeaseID = "" }},
		{"non-positive lease duration", func(a *contracts.Authorization) { a.LeaseValidForMS = 0 }},
		{"zero issued_at", func(a *contracts.Authorization) { a.IssuedAt = time.Time{} }},
		{"zero counter", func(a *contracts.Authorization) { a.CmdCounter = 0 }},
		{"missing policy hashes", func(a *contracts.Authorization) { a.KmanHash = "" }},
		{"missing signature", func(a *contracts.Authorization) { a.Signature.SigB64 = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := h.mint(t)
			tt.mutate(auth)

			result, err := h.exec.Execute(context.Background(), auth)
			require.NoError(t, err)
			require.NotNil(t, result.Error)
			assert.Equal(t, contracts.CodeAuthorizationInvalid, result.Error.Code)
		})
	}

	t.Run("nil authorization", func(t *testing.T) {
		result, err := h.exec.Execute(context.Background(), nil)
		require.NoError(t, err)
		require.NotNil(t, result.Error)
		assert.Equal(t, contracts.CodeAuthorizationInvalid, result.Error.Code)
	})
}

func TestExecute_EveryAttemptIsAudited(t *testing.T) {
	h := newHarness(t)
	auth := h.mint(t)

	before := h.auditLog.Size()
	_, err := h.exec.Execute(context.Background(), auth)
	require.NoError(t, err)
	_, err = h.exec.Execute(context.Background(), auth) // replay
	require.NoError(t, err)

	assert.Equal(t, before+2, h.auditLog.Size())
	require.NoError(t, h.auditLog.VerifyChain())
}
