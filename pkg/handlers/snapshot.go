package handlers

import (
	"context"
	"fmt"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
	"github.com/bowtae-labs/tsrc/pkg/executor"
	"github.com/bowtae-labs/tsrc/pkg/snapshot"
)

// UpdateSnapshot rebuilds the archive baseline from the authorized
// params: a new content-addressed snapshot is created and pinned. When
// the params name an existing snapshot_id instead, that snapshot is
// re-pinned without creating anything. This is a control-class action:
// it changes what every later proposal is evaluated against.
func UpdateSnapshot(store snapshot.Store) executor.Handler {
	return executor.HandlerFunc(func(ctx context.Context, auth *contracts.Authorization) (any, error) {
		if snapshotID, ok := auth.Params["snapshot_id"].(string); ok && snapshotID != "" {
			if err := store.Pin(ctx, snapshotID); err != nil {
				return nil, fmt.Errorf("handlers: pin snapshot %s: %w", snapshotID, err)
			}
			return map[string]any{"pinned": snapshotID}, nil
		}

		embeddingModel, ok := auth.Params["embedding_model"].(string)
		if !ok || embeddingModel == "" {
			return nil, fmt.Errorf("handlers: update snapshot: embedding_model missing from params")
		}
		hashes, err := stringsParam(auth.Params["contribution_hashes"])
		if err != nil {
			return nil, fmt.Errorf("handlers: update snapshot: contribution_hashes: %w", err)
		}
		indexingParams, _ := auth.Params["indexing_params"].(map[string]any)

		snap, err := store.Create(ctx, hashes, embeddingModel, indexingParams)
		if err != nil {
			return nil, fmt.Errorf("handlers: create snapshot: %w", err)
		}
		return snap, nil
	})
}
