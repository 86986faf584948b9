package authorizer

import (
	"strings"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// Built-in lease ceilings for action families, applied before the
// policy-wide clamp. A policy may override per action via
// lease.action_ceilings_ms.
const (
	blockchainCeilingMS = 60000
	paymentCeilingMS    = 45000
)

// computeLease derives the lease duration for a command: start from
// the policy default, scale by max(1, 4 - risk_tier) so lower-risk
// actions get longer leases, clamp to the action-family ceiling, then
// clamp to the policy-wide [min, max].
func computeLease(actionType string, riskTier contracts.RiskTier, lp contracts.LeasePolicy) int64 {
	ms := lp.DefaultMS
	if ms <= 0 {
		ms = 30000
	}

	scale := int64(4 - riskTier)
	if scale < 1 {
		scale = 1
	}
	ms *= scale

	if ceiling, ok := lp.ActionCeilingsMS[actionType]; ok && ms > ceiling {
		ms = ceiling
	}
	switch {
	case strings.Contains(actionType, "blockchain"):
		if ms > blockchainCeilingMS {
			ms = blockchainCeilingMS
		}
	case strings.Contains(actionType, "payment"):
		if ms > paymentCeilingMS {
			ms = paymentCeilingMS
		}
	}

	if lp.MaxMS > 0 && ms > lp.MaxMS {
		ms = lp.MaxMS
	}
	if lp.MinMS > 0 && ms < lp.MinMS {
		ms = lp.MinMS
	}
	return ms
}
