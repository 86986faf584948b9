package proposal

import "context"

// ScoreResult is the output of the evaluation black box. The scores
// are advisory only until projected: nothing here carries authority.
type ScoreResult struct {
	PodScore           float64        `json:"pod_score"`
	Novelty            float64        `json:"novelty"`
	Density            float64        `json:"density"`
	Coherence          float64        `json:"coherence"`
	Alignment          float64        `json:"alignment"`
	Metals             []string       `json:"metals"`
	Qualified          bool           `json:"qualified"`
	RedundancyAnalysis map[string]any `json:"redundancy_analysis,omitempty"`
	LLMMetadata        LLMMetadata    `json:"llm_metadata"`
	ScoreTrace         map[string]any `json:"score_trace,omitempty"`
}

// LLMMetadata identifies the model run that produced the scores.
type LLMMetadata struct {
	Model       string  `json:"model"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	PromptHash  string  `json:"prompt_hash"`
}

// Scorer is the external evaluation collaborator. Its internal
// correctness is out of scope; the gate treats it as pure-enough and
// synchronous.
type Scorer interface {
	Score(ctx context.Context, text, title, category string) (*ScoreResult, error)
}
