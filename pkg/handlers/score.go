// Package handlers holds the side-effect implementations dispatched by
// the executor. Each handler pulls its inputs from the authorization's
// signed params and talks to exactly one downstream surface.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/executor"
)

// ScoreRecord is the durable outcome of a scoring command: the
// evaluation verdict written to the contribution record.
type ScoreRecord struct {
	CommandID      string    `json:"command_id"`
	SubmissionHash string    `json:"submission_hash"`
	PodScore       float64   `json:"pod_score"`
	Metals         []string  `json:"metals"`
	Qualified      bool      `json:"qualified"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ScoreRecorder persists accepted submission scores.
type ScoreRecorder interface {
	Record(ctx context.Context, record *ScoreRecord) error
}

// Score records a scored submission through the given recorder. The
// score, metals and qualification flag come from the signed params, so
// the record can only hold what was authorized.
func Score(recorder ScoreRecorder) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, auth *contracts.Authorization) (any, error) {
		submissionHash, ok := auth.Params["submission_hash"].(string)
		if !ok || submissionHash == "" {
			return nil, fmt.Errorf("handlers: score: submission_hash missing from params")
		}
		podScore, ok := numberParam(auth.Params["pod_score"])
		if !ok {
			return nil, fmt.Errorf("handlers: score: pod_score missing from params")
		}
		metals, err := stringsParam(auth.Params["metals"])
		if err != nil {
			return nil, fmt.Errorf("handlers: score: metals: %w", err)
		}
		qualified, _ := auth.Params["qualified"].(bool)

		record := &ScoreRecord{
			CommandID:      auth.CommandID,
			SubmissionHash: submissionHash,
			PodScore:       podScore,
			Metals:         metals,
			Qualified:      qualified,
			RecordedAt:     time.Now().UTC(),
		}
		if err := recorder.Record(ctx, record); err != nil {
			return nil, fmt.Errorf("handlers: score: record: %w", err)
		}
		return record, nil
	})
}
