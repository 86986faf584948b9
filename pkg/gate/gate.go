// Package gate composes the four pipeline stages into one surface:
// generate, project, authorize, execute. Every submission flows
// through all four in order; no stage can be skipped from outside.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/bowtae-labs/tsrc/pkg/authorizer"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/executor"
	"github.com/bowtae-labs/tsrc/pkg/observability"
	"github.com/bowtae-labs/tsrc/pkg/policy"
	"github.com/bowtae-labs/tsrc/pkg/projector"
	"github.com/bowtae-labs/tsrc/pkg/proposal"
)

// Gate runs submissions through the full authorization pipeline.
type Gate struct {
	generator  *proposal.Generator
	policies   policy.Store
	authorizer *authorizer.Authorizer
	executor   *executor.Executor
	limiter    *rate.Limiter
	obs        *observability.Provider
	logger     *slog.Logger
}

// New assembles a gate. The limiter bounds submission intake; pass a
// generous limit if throttling is handled upstream.
func New(
	generator *proposal.Generator,
	policies policy.Store,
	auth *authorizer.Authorizer,
	exec *executor.Executor,
	limiter *rate.Limiter,
	obs *observability.Provider,
) *Gate {
	return &Gate{
		generator:  generator,
		policies:   policies,
		authorizer: auth,
		executor:   exec,
		limiter:    limiter,
		obs:        obs,
		logger:     slog.Default().With("component", "gate"),
	}
}

// Submit runs a raw submission end to end: evaluation, projection,
// authorization, execution. The returned result is the executor's
// verdict; a non-nil error means the pipeline stopped before any
// execution attempt.
func (g *Gate) Submit(ctx context.Context, input proposal.SubmissionInput) (*contracts.ExecutionResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gate: intake throttled: %w", err)
	}
	g.obs.RecordSubmission(ctx)

	stageCtx, done := g.obs.StartStage(ctx, "generate")
	env, err := g.generator.Generate(stageCtx, input)
	done(err)
	if err != nil {
		return nil, err
	}

	return g.Dispatch(ctx, env)
}

// Dispatch runs an already-assembled proposal envelope through
// projection, authorization and execution. Callers that mint their own
// envelopes (replays, governance actions) enter here.
func (g *Gate) Dispatch(ctx context.Context, env *contracts.ProposalEnvelope) (*contracts.ExecutionResult, error) {
	if err := contracts.ValidateProposal(env); err != nil {
		return nil, err
	}

	current, err := g.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("gate: read policy: %w", err)
	}

	stageCtx, done := g.obs.StartStage(ctx, "project")
	cmd := projector.Project(env, current)
	if cmd.Veto.IsVeto {
		vetoErr := contracts.NewGateError(contracts.CodeCannotAuthorizeVetoed,
			"proposal vetoed during projection").WithDetail("veto_reason", cmd.Veto.Reason)
		done(vetoErr)
		g.logger.Info("proposal vetoed",
			"proposal_id", env.ProposalID,
			"action", cmd.ActionType,
			"reason", cmd.Veto.Reason,
		)
		return nil, vetoErr
	}
	done(nil)

	stageCtx, done = g.obs.StartStage(ctx, "authorize")
	auth, err := g.authorizer.Authorize(stageCtx, cmd, current.Lease)
	done(err)
	if err != nil {
		return nil, err
	}

	stageCtx, done = g.obs.StartStage(ctx, "execute")
	result, err := g.executor.Execute(stageCtx, auth)
	if err != nil {
		done(err)
		return nil, err
	}
	if result.Error != nil {
		done(result.Error)
	} else {
		done(nil)
	}
	return result, nil
}
