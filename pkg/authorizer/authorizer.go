// Package authorizer implements the 0b layer: minting a counter, a
// time-bounded lease, and a signature over a canonical payload for a
// non-vetoed projected command.
//
// A vetoed command fails before any counter is consumed; a counter
// store failure aborts the mint entirely (no partial authorization).
package authorizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bowtae-labs/tsrc/pkg/audit"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/counter"
	"github.com/bowtae-labs/tsrc/pkg/keys"
)

// DefaultScope is the counter scope used when none is configured.
const DefaultScope = "gate"

// Authorizer mints authorizations from projected commands.
type Authorizer struct {
	counters counter.Store
	scope    string
	keys     keys.Provider
	auditLog *audit.Log
	clock    func() time.Time
	logger   *slog.Logger
}

// New creates an Authorizer. auditLog may not be nil: every mint is
// recorded before the authorization is returned.
func New(counters counter.Store, provider keys.Provider, auditLog *audit.Log) *Authorizer {
	return &Authorizer{
		counters: counters,
		scope:    DefaultScope,
		keys:     provider,
		auditLog: auditLog,
		clock:    time.Now,
		logger:   slog.Default().With("component", "authorizer"),
	}
}

// WithScope overrides the counter scope.
func (a *Authorizer) WithScope(scope string) *Authorizer {
	a.scope = scope
	return a
}

// WithClock overrides the clock for testing.
func (a *Authorizer) WithClock(clock func() time.Time) *Authorizer {
	a.clock = clock
	return a
}

// mintRecord is the audit payload written for every authorization.
type mintRecord struct {
	CommandID   string             `json:"command_id"`
	CmdCounter  uint64             `json:"cmd_counter"`
	ActionType  string             `json:"action_type"`
	RiskTier    contracts.RiskTier `json:"risk_tier"`
	LeaseExpiry time.Time          `json:"lease_expiry"`
	PolicySeq   int64              `json:"policy_seq"`
	KeyID       string             `json:"key_id"`
}

// Authorize mints an Authorization for a non-vetoed projected command
// under the given lease policy.
func (a *Authorizer) Authorize(ctx context.Context, cmd *contracts.ProjectedCommand, lease contracts.LeasePolicy) (*contracts.Authorization, error) {
	if cmd == nil {
		return nil, contracts.NewGateError(contracts.CodeCannotAuthorizeVetoed, "nil projected command")
	}
	if cmd.Veto.IsVeto {
		return nil, contracts.NewGateError(contracts.CodeCannotAuthorizeVetoed,
			"projected command is vetoed").WithDetail("veto_reason", cmd.Veto.Reason)
	}
	if cmd.ActionType == "" {
		return nil, contracts.NewGateError(contracts.CodeCannotAuthorizeVetoed, "projected command has no action type")
	}

	key, err := a.keys.Active()
	if err != nil {
		return nil, fmt.Errorf("authorizer: resolve active key: %w", err)
	}

	// The counter is the last external acquisition before assembly:
	// any earlier failure consumes nothing.
	cmdCounter, err := a.counters.Next(ctx, a.scope)
	if err != nil {
		return nil, fmt.Errorf("authorizer: counter store: %w", err)
	}

	auth := &contracts.Authorization{
		CommandID:       uuid.New().String(),
		ProjectionID:    cmd.ProjectionID,
		IssuedAt:        a.clock().UTC(),
		LeaseID:         uuid.New().String(),
		LeaseValidForMS: computeLease(cmd.ActionType, cmd.RiskTier, lease),
		CmdCounter:      cmdCounter,
		KmanHash:        cmd.KmanHash,
		BsetHash:        cmd.BsetHash,
		PolicySeq:       cmd.PolicySeq,
		ModeID:          cmd.ModeID,
		ClosureActive:   cmd.ClosureActive,
		ActionType:      cmd.ActionType,
		Params:          cmd.Params,
	}

	if err := Sign(auth, key); err != nil {
		return nil, err
	}

	_, err = a.auditLog.Append(audit.EntryAuthorizationMinted, auth.CommandID, auth.ActionType, mintRecord{
		CommandID:   auth.CommandID,
		CmdCounter:  auth.CmdCounter,
		ActionType:  auth.ActionType,
		RiskTier:    cmd.RiskTier,
		LeaseExpiry: auth.LeaseExpiry(),
		PolicySeq:   auth.PolicySeq,
		KeyID:       key.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("authorizer: audit mint: %w", err)
	}

	a.logger.Debug("authorization minted",
		"command_id", auth.CommandID,
		"action", auth.ActionType,
		"cmd_counter", auth.CmdCounter,
		"lease_ms", auth.LeaseValidForMS,
	)
	return auth, nil
}
