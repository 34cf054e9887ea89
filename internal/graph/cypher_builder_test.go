package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCypherBuilder_BuildMergeNode(t *testing.T) {
	b := NewCypherBuilder()
	cypher, err := b.BuildMergeNode("Entity", "id", "e1", map[string]any{
		"id":             "e1",
		"canonicalName":  "Acme Corp",
		"normalizedName": "acme",
	})
	require.NoError(t, err)
	assert.Contains(t, cypher, "MERGE (n:Entity {id: $p0})")
	assert.Len(t, b.Params(), 4)
}

func TestCypherBuilder_RejectsInvalidLabel(t *testing.T) {
	b := NewCypherBuilder()
	_, err := b.BuildMergeNode("Entity; DROP", "id", "e1", nil)
	require.Error(t, err)
}

func TestCypherBuilder_RejectsInvalidPropertyKey(t *testing.T) {
	b := NewCypherBuilder()
	_, err := b.BuildMergeNode("Entity", "id", "e1", map[string]any{
		"bad key": "x",
	})
	require.Error(t, err)
}

func TestIsValidRelationshipType(t *testing.T) {
	assert.True(t, IsValidRelationshipType("PARTNER"))
	assert.True(t, IsValidRelationshipType("partner_of"))
	assert.False(t, IsValidRelationshipType("partner-of"))
	assert.False(t, IsValidRelationshipType(""))
}

func TestContextScorer_Score(t *testing.T) {
	cs := NewContextScorer()
	got := cs.Score("Acme Holdings", []string{"Acme Corporation", "Acme Group"})
	assert.Greater(t, got, 0.0)

	assert.Equal(t, 0.0, cs.Score("Acme", nil))
}
