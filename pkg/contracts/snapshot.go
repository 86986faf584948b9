package contracts

import "time"

// ArchiveSnapshot is a content-addressed, immutable snapshot of the
// contribution archive at a point in time. Its ID is derived from the
// sorted contribution hashes plus the embedding/indexing configuration,
// so two identical archives always produce the same snapshot ID.
type ArchiveSnapshot struct {
	SnapshotID         string         `json:"snapshot_id"`
	ContributionHashes []string       `json:"contribution_hashes"`
	EmbeddingModel     string         `json:"embedding_model"`
	IndexingParams     map[string]any `json:"indexing_params,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}
