package reviewqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
)

type fakeBackend struct {
	executed []string
}

func (f *fakeBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	f.executed = append(f.executed, cypher)
	return nil
}
func (f *fakeBackend) CreateIndexes(ctx context.Context) error   { return nil }
func (f *fakeBackend) IsConnected(ctx context.Context) bool      { return true }
func (f *fakeBackend) Close(ctx context.Context) error           { return nil }

func TestNoopQueue_NotConfigured(t *testing.T) {
	q := Noop()
	assert.False(t, q.Configured())
	assert.NoError(t, q.Submit(context.Background(), &models.ReviewItem{}))
}

func TestGraphQueue_SubmitsToRepository(t *testing.T) {
	backend := &fakeBackend{}
	q := NewGraphQueue(repository.NewReviewRepository(backend))

	assert.True(t, q.Configured())
	item := &models.ReviewItem{
		ID:              "r1",
		SourceEntityID:  "e1",
		CandidateEntityID: "e2",
		EntityType:      models.EntityTypeCompany,
		SimilarityScore: 0.7,
		Status:          models.ReviewStatusPending,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, q.Submit(context.Background(), item))
	assert.NotEmpty(t, backend.executed)
}
