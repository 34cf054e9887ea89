package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestSynonymRepository_Create(t *testing.T) {
	backend := newFakeBackend()
	repo := NewSynonymRepository(backend)

	s := &models.Synonym{
		ID:              "s1",
		Value:           "Acme",
		NormalizedValue: "acme",
		Source:          models.SynonymSourceSystem,
		Confidence:      0.8,
		CreatedAt:       time.Now().UTC(),
		LastConfirmedAt: time.Now().UTC(),
		SupportCount:    1,
		EntityID:        "e1",
	}

	require.NoError(t, repo.Create(context.Background(), s))
	require.Len(t, backend.executed, 2)
	assert.Contains(t, backend.executed[0].Cypher, "MERGE (n:Synonym")
	assert.Contains(t, backend.executed[1].Cypher, "SYNONYM_OF")
}

func TestSynonymRepository_FindByNormalizedValue(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["SYNONYM_OF"] = []map[string]any{
		{
			"id": "s1", "value": "Acme", "normalizedValue": "acme", "source": "SYSTEM",
			"confidence": 0.8, "createdAt": time.Now().UTC(), "lastConfirmedAt": time.Now().UTC(),
			"supportCount": int64(3), "entityId": "e1",
		},
	}
	repo := NewSynonymRepository(backend)

	synonyms, err := repo.FindByNormalizedValue(context.Background(), "acme", models.EntityTypeCompany)
	require.NoError(t, err)
	require.Len(t, synonyms, 1)
	assert.Equal(t, 3, synonyms[0].SupportCount)
	assert.Equal(t, "e1", synonyms[0].EntityID)
}

func TestSynonymRepository_RepointToEntity(t *testing.T) {
	backend := newFakeBackend()
	repo := NewSynonymRepository(backend)

	require.NoError(t, repo.RepointToEntity(context.Background(), "src", "tgt"))
	require.Len(t, backend.executed, 1)
	assert.Contains(t, backend.executed[0].Cypher, "SYNONYM_OF")
}
