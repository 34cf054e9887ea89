package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestEntityRepository_Create(t *testing.T) {
	backend := newFakeBackend()
	repo := NewEntityRepository(backend)

	e := &models.Entity{
		ID:             "e1",
		CanonicalName:  "Acme Corp",
		NormalizedName: "acme",
		Type:           models.EntityTypeCompany,
		Status:         models.EntityStatusActive,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	require.NoError(t, repo.Create(context.Background(), e))
	require.Len(t, backend.executed, 1)
	assert.Contains(t, backend.executed[0].Cypher, "MERGE (n:Entity")
}

func TestEntityRepository_GetByID_NotFound(t *testing.T) {
	backend := newFakeBackend()
	repo := NewEntityRepository(backend)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
}

func TestEntityRepository_GetByID_Found(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["MATCH (e:Entity {id: $id})"] = []map[string]any{
		{
			"id": "e1", "canonicalName": "Acme Corp", "normalizedName": "acme",
			"type": "COMPANY", "confidenceScore": 0.9, "status": "ACTIVE",
			"createdAt": time.Now().UTC(), "updatedAt": time.Now().UTC(),
		},
	}
	repo := NewEntityRepository(backend)

	e, err := repo.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", e.CanonicalName)
	assert.Equal(t, models.EntityTypeCompany, e.Type)
}

func TestEntityRepository_CanonicalOf_NoMerge(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["MERGED_INTO*0.."] = []map[string]any{{"canonicalId": "e1"}}
	repo := NewEntityRepository(backend)

	id, err := repo.CanonicalOf(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
}

func TestEntityRepository_TransitionToMerged(t *testing.T) {
	backend := newFakeBackend()
	repo := NewEntityRepository(backend)

	require.NoError(t, repo.TransitionToMerged(context.Background(), "e1"))
	require.Len(t, backend.executed, 1)
	assert.Contains(t, backend.executed[0].Cypher, "SET e.status = $merged")
}
