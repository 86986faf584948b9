package proposal

import (
	"context"
	"strings"
	"unicode"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
)

// LexicalScorer is a deterministic, offline scorer: scores depend only
// on the submission text. It stands in wherever a model-backed scorer
// is unavailable and keeps evaluation reproducible byte for byte.
type LexicalScorer struct {
	ConfigID string
}

// Score derives scores from word statistics of the text. Same text,
// same scores, always.
func (s LexicalScorer) Score(ctx context.Context, text, title, category string) (*ScoreResult, error) {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}

	novelty := ratio(len(unique), len(words))
	density := clamp(float64(len(words)) / 500.0)
	coherence := ratio(len(title), 80)
	alignment := 0.5
	if category != "" {
		alignment = 0.8
	}

	pod := (novelty*0.35 + density*0.25 + coherence*0.2 + alignment*0.2) * 100

	var metals []string
	if pod >= 75 {
		metals = append(metals, "gold")
	} else if pod >= 50 {
		metals = append(metals, "silver")
	}

	return &ScoreResult{
		PodScore:  pod,
		Novelty:   novelty,
		Density:   density,
		Coherence: coherence,
		Alignment: alignment,
		Metals:    metals,
		Qualified: pod >= 50,
		LLMMetadata: LLMMetadata{
			Model:       "lexical-v1",
			Provider:    "local",
			Temperature: 0,
			PromptHash:  canonicalize.HashText("lexical-v1:" + s.ConfigID),
		},
	}, nil
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return clamp(float64(n) / float64(d))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
