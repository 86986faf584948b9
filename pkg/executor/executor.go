// Package executor is the last line of defense: it runs an action if
// and only if the authorization it receives is signed, in-lease,
// unreplayed, and bound to the live policy. Every check failure is
// fail-closed; a failed or panicking handler still burns the counter.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bowtae-labs/tsrc/pkg/audit"
	"github.com/bowtae-labs/tsrc/pkg/authorizer"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/counter"
	"github.com/bowtae-labs/tsrc/pkg/keys"
	"github.com/bowtae-labs/tsrc/pkg/policy"
)

// Handler performs the side effect for one action type. Handlers run
// only after every executor check has passed.
type Handler interface {
	Handle(ctx context.Context, auth *contracts.Authorization) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, auth *contracts.Authorization) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, auth *contracts.Authorization) (any, error) {
	return f(ctx, auth)
}

// Executor verifies and dispatches minted authorizations.
type Executor struct {
	keys     keys.Provider
	used     counter.UsedSet
	policies policy.Store
	auditLog *audit.Log
	handlers map[string]Handler
	clock    func() time.Time
	logger   *slog.Logger
}

// New creates an Executor with no registered handlers.
func New(provider keys.Provider, used counter.UsedSet, policies policy.Store, auditLog *audit.Log) *Executor {
	return &Executor{
		keys:     provider,
		used:     used,
		policies: policies,
		auditLog: auditLog,
		handlers: make(map[string]Handler),
		clock:    time.Now,
		logger:   slog.Default().With("component", "executor"),
	}
}

// WithClock overrides the clock for testing.
func (e *Executor) WithClock(clock func() time.Time) *Executor {
	e.clock = clock
	return e
}

// Register binds a handler to an action type, replacing any previous one.
func (e *Executor) Register(actionType string, handler Handler) *Executor {
	e.handlers[actionType] = handler
	return e
}

// Execute runs the authorization through the full check chain and, on
// success, dispatches the registered handler. The returned error is
// non-nil only for infrastructure failures (store unreachable); every
// verdict about the authorization itself lands in the result.
func (e *Executor) Execute(ctx context.Context, auth *contracts.Authorization) (*contracts.ExecutionResult, error) {
	started := e.clock()
	result := &contracts.ExecutionResult{
		ExecutedAt: started.UTC(),
	}
	if auth != nil {
		result.CommandID = auth.CommandID
		result.ActionType = auth.ActionType
	}

	gateErr, err := e.verify(ctx, auth, result)
	if err != nil {
		return nil, err
	}
	if gateErr == nil {
		gateErr = e.dispatch(ctx, auth, result)
	}

	result.Success = gateErr == nil
	result.Error = gateErr
	result.DurationMS = e.clock().Sub(started).Milliseconds()

	if _, err := e.auditLog.Append(audit.EntryExecutionResult, result.CommandID, result.ActionType, result); err != nil {
		return nil, fmt.Errorf("executor: audit result: %w", err)
	}

	if gateErr != nil {
		e.logger.Warn("execution denied",
			"command_id", result.CommandID,
			"action", result.ActionType,
			"code", gateErr.Code,
		)
	} else {
		e.logger.Info("execution complete",
			"command_id", result.CommandID,
			"action", result.ActionType,
			"duration_ms", result.DurationMS,
		)
	}
	return result, nil
}

// verify runs the check chain in fixed order: structure, signature,
// lease, replay pre-check, policy binding, then the atomic counter
// burn. The first failing check wins; its flag stays false.
func (e *Executor) verify(ctx context.Context, auth *contracts.Authorization, result *contracts.ExecutionResult) (*contracts.GateError, error) {
	if gateErr := validateStructure(auth); gateErr != nil {
		return gateErr, nil
	}

	key, err := e.keys.Lookup(auth.Signature.KeyID)
	if err != nil {
		return contracts.NewGateError(contracts.CodeSignatureInvalid,
			"signing key is not resolvable").WithDetail("key_id", auth.Signature.KeyID), nil
	}
	if !authorizer.VerifySignature(auth, key) {
		return contracts.NewGateError(contracts.CodeSignatureInvalid,
			"signature does not verify against authorization fields"), nil
	}
	result.Verification.SignatureVerified = true

	now := e.clock()
	if now.After(auth.LeaseExpiry()) {
		return contracts.NewGateError(contracts.CodeLeaseExpired,
			"authorization lease has expired").
			WithDetail("lease_id", auth.LeaseID).
			WithDetail("expired_at", auth.LeaseExpiry().UTC().Format(time.RFC3339Nano)), nil
	}
	result.Verification.LeaseVerified = true

	// Advisory pre-check so an already-burned counter fails before the
	// policy read. The atomic burn below is the actual replay gate.
	seen, err := e.used.Contains(ctx, auth.CmdCounter)
	if err != nil {
		return nil, fmt.Errorf("executor: used set: %w", err)
	}
	if seen {
		return replayError(auth), nil
	}

	current, err := e.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: read policy: %w", err)
	}
	if current.PolicySeq != auth.PolicySeq ||
		current.KmanHash != auth.KmanHash ||
		current.BsetHash != auth.BsetHash {
		return contracts.NewGateError(contracts.CodePolicyMismatch,
			"authorization is bound to a superseded policy").
			WithDetail("authorized_seq", auth.PolicySeq).
			WithDetail("current_seq", current.PolicySeq), nil
	}
	result.Verification.PolicyVerified = true

	won, err := e.used.MarkUsed(ctx, auth.CmdCounter)
	if err != nil {
		return nil, fmt.Errorf("executor: mark counter used: %w", err)
	}
	if !won {
		return replayError(auth), nil
	}
	result.Verification.CounterVerified = true
	return nil, nil
}

// dispatch runs the handler for the action type. The counter is
// already burned at this point, so a handler failure or panic cannot
// make the authorization replayable.
func (e *Executor) dispatch(ctx context.Context, auth *contracts.Authorization, result *contracts.ExecutionResult) (gateErr *contracts.GateError) {
	handler, ok := e.handlers[auth.ActionType]
	if !ok {
		return contracts.NewGateError(contracts.CodeExecutionError,
			"no handler registered for action").WithDetail("action_type", auth.ActionType)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked",
				"command_id", auth.CommandID,
				"action", auth.ActionType,
				"panic", fmt.Sprint(r),
			)
			gateErr = contracts.NewGateError(contracts.CodeExecutionError, "handler panicked")
		}
	}()

	out, err := handler.Handle(ctx, auth)
	if err != nil {
		return contracts.NewGateError(contracts.CodeExecutionError,
			"handler failed").WithDetail("cause", err.Error())
	}
	result.Result = out
	return nil
}

func replayError(auth *contracts.Authorization) *contracts.GateError {
	return contracts.NewGateError(contracts.CodeCounterReplay,
		"command counter already consumed").WithDetail("cmd_counter", auth.CmdCounter)
}

// validateStructure rejects authorizations missing the fields every
// later check depends on.
func validateStructure(auth *contracts.Authorization) *contracts.GateError {
	switch {
	case auth == nil:
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "nil authorization")
	case auth.CommandID == "":
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing command_id")
	case auth.ActionType == "":
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing action_type")
	case auth.LeaseID == "" || auth.LeaseValidForMS <= 0:
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing or non-positive lease")
	case auth.IssuedAt.IsZero():
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing issued_at")
	case auth.CmdCounter == 0:
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing cmd_counter")
	case auth.KmanHash == "" || auth.BsetHash == "":
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing policy binding hashes")
	case auth.Signature.SigB64 == "" || auth.Signature.KeyID == "":
		return contracts.NewGateError(contracts.CodeAuthorizationInvalid, "missing signature record")
	}
	return nil
}
