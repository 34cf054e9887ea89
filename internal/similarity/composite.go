package similarity

import (
	"math"

	"github.com/entitygraph/resolver/internal/errors"
)

const weightTolerance = 1e-6

// Weights holds the composite blend: w_L*Levenshtein + w_JW*JaroWinkler +
// w_J*Jaccard. Must be non-negative and sum to 1.0 within weightTolerance.
type Weights struct {
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
}

// DefaultWeights matches the specified defaults (0.4, 0.35, 0.25).
func DefaultWeights() Weights {
	return Weights{Levenshtein: 0.4, JaroWinkler: 0.35, Jaccard: 0.25}
}

// Validate checks non-negativity and that the weights sum to 1.0 ± ε.
func (w Weights) Validate() error {
	if w.Levenshtein < 0 || w.JaroWinkler < 0 || w.Jaccard < 0 {
		return errors.InvalidInputError("similarity weights must be non-negative")
	}
	sum := w.Levenshtein + w.JaroWinkler + w.Jaccard
	if math.Abs(sum-1.0) > weightTolerance {
		return errors.InvalidInputErrorf("similarity weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// Breakdown carries the individual component scores alongside the blended
// composite, for direct use building a MatchDecisionRecord.
type Breakdown struct {
	Levenshtein float64
	JaroWinkler float64
	Jaccard     float64
	Composite   float64
}

// Composite scores two already-normalized strings against the given
// weights, returning the full component breakdown.
func Composite(a, b string, w Weights) Breakdown {
	lev := LevenshteinSimilarity(a, b)
	jw := JaroWinkler(a, b)
	jac := JaccardSimilarity(a, b)

	return Breakdown{
		Levenshtein: lev,
		JaroWinkler: jw,
		Jaccard:     jac,
		Composite:   w.Levenshtein*lev + w.JaroWinkler*jw + w.Jaccard*jac,
	}
}
