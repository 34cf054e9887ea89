package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestRelationshipRepository_Create_RejectsInvalidType(t *testing.T) {
	backend := newFakeBackend()
	repo := NewRelationshipRepository(backend)

	rel := &models.LibraryRelationship{
		ID:               "r1",
		SourceEntityID:   "e1",
		TargetEntityID:   "e2",
		RelationshipType: "bad-type",
		CreatedAt:        time.Now().UTC(),
	}

	err := repo.Create(context.Background(), rel)
	require.Error(t, err)
	assert.Empty(t, backend.executed)
}

func TestRelationshipRepository_Create_Valid(t *testing.T) {
	backend := newFakeBackend()
	repo := NewRelationshipRepository(backend)

	rel := &models.LibraryRelationship{
		ID:               "r1",
		SourceEntityID:   "e1",
		TargetEntityID:   "e2",
		RelationshipType: "PARTNER_OF",
		CreatedAt:        time.Now().UTC(),
		CreatedBy:        "resolver",
	}

	require.NoError(t, repo.Create(context.Background(), rel))
	require.Len(t, backend.executed, 1)
	assert.Contains(t, backend.executed[0].Cypher, "LIBRARY_REL")
}

func TestRelationshipRepository_MigrateOutgoing(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["LIBRARY_REL"] = []map[string]any{{"c": int64(2)}}
	repo := NewRelationshipRepository(backend)

	count, err := repo.MigrateOutgoing(context.Background(), "src", "tgt")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
