package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshteinSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, LevenshteinSimilarity("acme", "acme"))
	assert.Equal(t, 0.0, LevenshteinSimilarity("", "acme"))
	assert.Equal(t, 0.0, LevenshteinSimilarity("acme", ""))
	assert.InDelta(t, 1.0, LevenshteinSimilarity("", ""), 0.0001)

	got := LevenshteinSimilarity("microsft corporatoin", "microsoft corporation")
	assert.Greater(t, got, 0.85)
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, JaroWinkler("acme", "acme"))
	assert.Equal(t, 0.0, JaroWinkler("", "acme"))

	got := JaroWinkler("martha", "marhta")
	assert.InDelta(t, 0.961, got, 0.01)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, JaccardSimilarity("", ""))
	got := JaccardSimilarity("acme corp", "acme holdings")
	assert.InDelta(t, 1.0/3.0, got, 0.0001)
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	bad := Weights{Levenshtein: 0.5, JaroWinkler: 0.5, Jaccard: 0.5}
	require.Error(t, bad.Validate())

	negative := Weights{Levenshtein: -0.1, JaroWinkler: 0.6, Jaccard: 0.5}
	require.Error(t, negative.Validate())
}

func TestComposite(t *testing.T) {
	b := Composite("acme", "acme", DefaultWeights())
	assert.InDelta(t, 1.0, b.Composite, 0.0001)
}
