package merge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
)

// memBackend is a minimal in-memory graph.Backend good enough to exercise
// the merge saga's happy path and its entity-status preconditions without
// a live Neo4j instance.
type memBackend struct {
	mu       sync.Mutex
	entities map[string]map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{entities: make(map[string]map[string]any)}
}

func (b *memBackend) putEntity(id string, t models.EntityType, status models.EntityStatus, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entities[id] = map[string]any{
		"id": id, "canonicalName": name, "normalizedName": strings.ToLower(name),
		"type": string(t), "status": string(status), "confidenceScore": 1.0,
		"createdAt": time.Now().UTC(), "updatedAt": time.Now().UTC(),
	}
}

func (b *memBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.Contains(cypher, "MATCH (e:Entity {id: $id})") {
		id, _ := params["id"].(string)
		if row, ok := b.entities[id]; ok {
			return []map[string]any{row}, nil
		}
		return nil, nil
	}
	if strings.Contains(cypher, "SYNONYM_OF") {
		return nil, nil
	}
	if strings.Contains(cypher, "count(rel)") {
		return []map[string]any{{"c": int64(0)}}, nil
	}
	return nil, nil
}

func (b *memBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.Contains(cypher, "SET e.status") {
		id, _ := params["id"].(string)
		row, ok := b.entities[id]
		if !ok {
			return nil
		}
		if v, ok := params["merged"]; ok {
			row["status"] = v
		} else if v, ok := params["active"]; ok {
			row["status"] = v
		}
	}
	return nil
}

func (b *memBackend) CreateIndexes(ctx context.Context) error { return nil }
func (b *memBackend) IsConnected(ctx context.Context) bool    { return true }
func (b *memBackend) Close(ctx context.Context) error         { return nil }

func newTestEngine(backend *memBackend) *Engine {
	return NewEngine(
		repository.NewEntityRepository(backend),
		repository.NewSynonymRepository(backend),
		repository.NewDuplicateRepository(backend),
		repository.NewRelationshipRepository(backend),
		repository.NewLedgerRepository(backend),
		repository.NewAuditRepository(backend),
	)
}

func TestEngine_CanMerge_RejectsSelfMerge(t *testing.T) {
	backend := newMemBackend()
	backend.putEntity("e1", models.EntityTypeCompany, models.EntityStatusActive, "Acme")
	e := newTestEngine(backend)

	_, _, err := e.CanMerge(context.Background(), "e1", "e1")
	assert.Error(t, err)
}

func TestEngine_CanMerge_RejectsDifferentTypes(t *testing.T) {
	backend := newMemBackend()
	backend.putEntity("e1", models.EntityTypeCompany, models.EntityStatusActive, "Acme")
	backend.putEntity("e2", models.EntityTypePerson, models.EntityStatusActive, "Acme Person")
	e := newTestEngine(backend)

	_, _, err := e.CanMerge(context.Background(), "e1", "e2")
	assert.Error(t, err)
}

func TestEngine_CanMerge_RejectsNonActiveSource(t *testing.T) {
	backend := newMemBackend()
	backend.putEntity("e1", models.EntityTypeCompany, models.EntityStatusMerged, "Acme")
	backend.putEntity("e2", models.EntityTypeCompany, models.EntityStatusActive, "Acme Corp")
	e := newTestEngine(backend)

	_, _, err := e.CanMerge(context.Background(), "e1", "e2")
	assert.Error(t, err)
}

func TestEngine_Merge_HappyPath(t *testing.T) {
	backend := newMemBackend()
	backend.putEntity("src", models.EntityTypeCompany, models.EntityStatusActive, "Acme Corp")
	backend.putEntity("tgt", models.EntityTypeCompany, models.EntityStatusActive, "Acme Corporation")
	e := newTestEngine(backend)

	result, err := e.Merge(context.Background(), "src", "tgt", MatchResult{Confidence: 0.95, Reasoning: "fuzzy match"}, "system", StrategyKeepTarget)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SynonymID)
	assert.NotEmpty(t, result.DuplicateEntityID)
	assert.Empty(t, result.CompensationErrors)

	srcEntity, err := repository.NewEntityRepository(backend).GetByID(context.Background(), "src")
	require.NoError(t, err)
	assert.Equal(t, models.EntityStatusMerged, srcEntity.Status)
}
