package resolution

import (
	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/similarity"
)

// Options configures a single Resolve call.
type Options struct {
	UseLLM bool

	AutoMergeThreshold float64
	SynonymThreshold   float64
	ReviewThreshold    float64

	LLMConfidenceThreshold float64

	SimilarityWeights similarity.Weights
	SourceSystem      string
	AutoMergeEnabled  bool

	MaxBatchSize         int
	BatchCommitChunkSize int
}

// DefaultOptions returns the spec-documented threshold defaults
// (0.92/0.80/0.60) with auto-merge enabled and LLM enrichment off.
func DefaultOptions() Options {
	return Options{
		UseLLM:                 false,
		AutoMergeThreshold:     0.92,
		SynonymThreshold:       0.80,
		ReviewThreshold:        0.60,
		LLMConfidenceThreshold: 0.75,
		SimilarityWeights:      similarity.DefaultWeights(),
		SourceSystem:           "system",
		AutoMergeEnabled:       true,
		MaxBatchSize:           1000,
		BatchCommitChunkSize:   100,
	}
}

// Validate enforces autoMerge >= synonym >= review and weight sanity.
func (o Options) Validate() error {
	if o.AutoMergeThreshold < o.SynonymThreshold || o.SynonymThreshold < o.ReviewThreshold {
		return errors.InvalidInputErrorf(
			"threshold ordering violated: autoMerge(%.2f) >= synonym(%.2f) >= review(%.2f) must hold",
			o.AutoMergeThreshold, o.SynonymThreshold, o.ReviewThreshold)
	}
	if o.AutoMergeThreshold < 0 || o.AutoMergeThreshold > 1 ||
		o.SynonymThreshold < 0 || o.SynonymThreshold > 1 ||
		o.ReviewThreshold < 0 || o.ReviewThreshold > 1 {
		return errors.InvalidInputError("thresholds must lie in [0,1]")
	}
	if o.LLMConfidenceThreshold < 0 || o.LLMConfidenceThreshold > 1 {
		return errors.InvalidInputError("llmConfidenceThreshold must lie in [0,1]")
	}
	if err := o.SimilarityWeights.Validate(); err != nil {
		return err
	}
	if o.MaxBatchSize <= 0 {
		return errors.InvalidInputError("maxBatchSize must be positive")
	}
	if o.BatchCommitChunkSize <= 0 {
		return errors.InvalidInputError("batchCommitChunkSize must be positive")
	}
	return nil
}
