// Package proposal implements the -1 layer of the gate: turning an
// untrusted submission into a schema-valid ProposalEnvelope.
//
// Generation is pure apart from the black-box scoring call: content
// and inputs hashes are deterministic, and the archive snapshot is
// pinned once, never recomputed per call.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// ActionScoreProposal is the action type produced by evaluation runs.
const ActionScoreProposal = "score_poc_proposal"

// SnapshotPinner resolves the snapshot evaluation is pinned to.
type SnapshotPinner interface {
	Pinned(ctx context.Context) (string, error)
}

// SubmissionInput is the raw, caller-supplied submission.
type SubmissionInput struct {
	TextContent string            `json:"text_content"`
	Title       string            `json:"title"`
	Category    string            `json:"category,omitempty"`
	Options     SubmissionOptions `json:"options,omitempty"`
}

// SubmissionOptions carries optional evaluation context.
type SubmissionOptions struct {
	SandboxID   string `json:"sandbox_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	ExcludeHash string `json:"exclude_hash,omitempty"`
}

// Generator assembles proposal envelopes from submissions.
type Generator struct {
	scorer        Scorer
	snapshots     SnapshotPinner
	scoreConfigID string
	clock         func() time.Time
}

// NewGenerator creates a proposal generator. scoreConfigID identifies
// the scoring configuration for the determinism record.
func NewGenerator(scorer Scorer, snapshots SnapshotPinner, scoreConfigID string) *Generator {
	return &Generator{
		scorer:        scorer,
		snapshots:     snapshots,
		scoreConfigID: scoreConfigID,
		clock:         time.Now,
	}
}

// WithClock overrides the clock for testing.
func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

// Generate evaluates a submission and assembles a ProposalEnvelope.
// The envelope is validated against its schema before being returned;
// any missing required field fails with proposal_invalid.
func (g *Generator) Generate(ctx context.Context, input SubmissionInput) (*contracts.ProposalEnvelope, error) {
	if input.TextContent == "" {
		return nil, contracts.NewGateError(contracts.CodeProposalInvalid, "text_content is required")
	}
	if input.Title == "" {
		return nil, contracts.NewGateError(contracts.CodeProposalInvalid, "title is required")
	}

	contentHash := canonicalize.HashText(input.TextContent)

	snapshotID, err := g.snapshots.Pinned(ctx)
	if err != nil {
		return nil, fmt.Errorf("proposal: resolve pinned snapshot: %w", err)
	}

	inputsHash, err := canonicalize.CanonicalHash(map[string]any{
		"content_hash":        contentHash,
		"title":               input.Title,
		"category":            input.Category,
		"options":             input.Options,
		"score_config_id":     g.scoreConfigID,
		"archive_snapshot_id": snapshotID,
	})
	if err != nil {
		return nil, fmt.Errorf("proposal: compute inputs hash: %w", err)
	}

	score, err := g.scorer.Score(ctx, input.TextContent, input.Title, input.Category)
	if err != nil {
		return nil, fmt.Errorf("proposal: scoring failed: %w", err)
	}
	if score == nil {
		return nil, errors.New("proposal: scorer returned nil result")
	}

	env := &contracts.ProposalEnvelope{
		ProposalID: uuid.New().String(),
		Timestamp:  g.clock().UTC(),
		Intent:     fmt.Sprintf("score submission %q", input.Title),
		ActionType: ActionScoreProposal,
		Params: map[string]any{
			"submission_hash": contentHash,
			"pod_score":       score.PodScore,
			"novelty":         score.Novelty,
			"density":         score.Density,
			"coherence":       score.Coherence,
			"alignment":       score.Alignment,
			"metals":          score.Metals,
			"qualified":       score.Qualified,
		},
		Trace: contracts.TraceRecord{
			RunID:      uuid.New().String(),
			InputsHash: inputsHash,
			Determinism: contracts.DeterminismRecord{
				Model:             score.LLMMetadata.Model,
				Provider:          score.LLMMetadata.Provider,
				Temperature:       score.LLMMetadata.Temperature,
				PromptHash:        score.LLMMetadata.PromptHash,
				ContentHash:       contentHash,
				ScoreConfigID:     g.scoreConfigID,
				ArchiveSnapshotID: snapshotID,
			},
		},
	}

	if err := contracts.ValidateProposal(env); err != nil {
		return nil, err
	}
	return env, nil
}
