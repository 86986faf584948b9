package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

const samplePolicyYAML = `
schema_version: "1.0.0"
policy_seq: 7
mode_id: standard
kman:
  version: "1.2.0"
  capabilities:
    score_poc_proposal: 1
    create_payment_session: 2
    register_blockchain: 2
    update_snapshot: 1
bset:
  forbidden_actions:
    - drop_database
  control_artifacts_disabled: true
  max_risk_tier: 2
  deny_rules:
    - name: no-free-payments
      expr: 'action == "create_payment_session" && params.amount <= 0.0'
lease:
  default_ms: 30000
  min_ms: 1000
  max_ms: 120000
  action_ceilings_ms:
    register_blockchain: 60000
    create_payment_session: 45000
`

func TestLoad_ValidPolicy(t *testing.T) {
	state, err := Load([]byte(samplePolicyYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(7), state.PolicySeq)
	assert.Equal(t, "standard", state.ModeID)
	assert.Equal(t, contracts.RiskTierElevated, state.Kman.Capabilities["create_payment_session"])
	assert.True(t, state.Bset.ControlArtifactsDisabled)
	assert.Equal(t, contracts.RiskTierElevated, state.Bset.MaxRiskTier)
	assert.Len(t, state.Bset.DenyRules, 1)
	assert.Equal(t, int64(60000), state.Lease.ActionCeilingsMS["register_blockchain"])

	// Loader seals the state.
	assert.NotEmpty(t, state.KmanHash)
	assert.NotEmpty(t, state.BsetHash)
}

func TestLoad_RejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Load([]byte(`
schema_version: "2.0.0"
policy_seq: 1
mode_id: standard
`))
	assert.ErrorContains(t, err, "schema_version")
}

func TestLoad_RejectsBadDenyRule(t *testing.T) {
	_, err := Load([]byte(`
schema_version: "1.0.0"
policy_seq: 1
mode_id: standard
bset:
  max_risk_tier: 2
  deny_rules:
    - name: broken
      expr: 'this is not CEL ((('
lease:
  default_ms: 30000
  min_ms: 1000
  max_ms: 120000
`))
	assert.ErrorContains(t, err, "deny rule")
}

func TestLoad_RejectsOutOfRangeRiskTier(t *testing.T) {
	_, err := Load([]byte(`
schema_version: "1.0.0"
policy_seq: 1
mode_id: standard
bset:
  max_risk_tier: 9
`))
	assert.ErrorContains(t, err, "max_risk_tier")
}

func TestLoadFile_ShippedDefault(t *testing.T) {
	state, err := LoadFile(filepath.Join("..", "..", "policy.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), state.PolicySeq)
	for _, action := range []string{
		"score_poc_proposal",
		"create_payment_session",
		"register_blockchain",
		"update_snapshot",
	} {
		assert.Contains(t, state.Kman.Capabilities, action)
	}
	assert.False(t, state.Bset.ControlArtifactsDisabled)
	assert.NotEmpty(t, state.KmanHash)
	assert.NotEmpty(t, state.BsetHash)
}

func TestLoad_HashStability(t *testing.T) {
	a, err := Load([]byte(samplePolicyYAML))
	require.NoError(t, err)
	b, err := Load([]byte(samplePolicyYAML))
	require.NoError(t, err)

	assert.Equal(t, a.KmanHash, b.KmanHash)
	assert.Equal(t, a.BsetHash, b.BsetHash)
}
