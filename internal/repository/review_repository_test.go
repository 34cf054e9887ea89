package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestReviewRepository_Create(t *testing.T) {
	backend := newFakeBackend()
	repo := NewReviewRepository(backend)

	item := &models.ReviewItem{
		ID: "r1", SourceEntityID: "e1", CandidateEntityID: "e2",
		EntityType: models.EntityTypeCompany, SimilarityScore: 0.81,
		Status: models.ReviewStatusPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), item))
	require.Len(t, backend.executed, 1)
}

func TestReviewRepository_Resolve_RejectsInvalidStatus(t *testing.T) {
	backend := newFakeBackend()
	repo := NewReviewRepository(backend)

	err := repo.Resolve(context.Background(), "r1", models.ReviewStatusPending)
	require.Error(t, err)
}

func TestReviewRepository_Resolve_Valid(t *testing.T) {
	backend := newFakeBackend()
	repo := NewReviewRepository(backend)

	require.NoError(t, repo.Resolve(context.Background(), "r1", models.ReviewStatusApproved))
	require.Len(t, backend.executed, 1)
}
