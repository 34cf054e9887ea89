// Package repository holds thin, parameterized Cypher wrappers over the
// graph-store collaborator — one type per node/ledger family in the data
// model. Each repository is a constructor-takes-handle struct in the style
// of the teacher's internal/incidents.Database: no business logic beyond
// translating a model to/from graph rows.
package repository

import (
	"context"
	"time"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// EntityRepository persists and queries Entity nodes.
type EntityRepository struct {
	backend graph.Backend
}

// NewEntityRepository wraps a graph-store collaborator.
func NewEntityRepository(backend graph.Backend) *EntityRepository {
	return &EntityRepository{backend: backend}
}

// Create inserts a new ACTIVE entity. Callers are expected to have already
// set ID, NormalizedName (via the normalization engine), CreatedAt and
// UpdatedAt.
func (r *EntityRepository) Create(ctx context.Context, e *models.Entity) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("Entity", "id", e.ID, map[string]any{
		"id":              e.ID,
		"canonicalName":   e.CanonicalName,
		"normalizedName":  e.NormalizedName,
		"type":            string(e.Type),
		"confidenceScore": e.ConfidenceScore,
		"status":          string(e.Status),
		"createdAt":       e.CreatedAt,
		"updatedAt":       e.UpdatedAt,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build entity create query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to create entity")
	}
	return nil
}

// GetByID loads a single entity by id.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (e:Entity {id: $id}) RETURN e.id as id, e.canonicalName as canonicalName,
		 e.normalizedName as normalizedName, e.type as type, e.confidenceScore as confidenceScore,
		 e.status as status, e.createdAt as createdAt, e.updatedAt as updatedAt`,
		map[string]any{"id": id})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to query entity")
	}
	if len(rows) == 0 {
		return nil, errors.NotFoundErrorf("entity %s not found", id)
	}
	return rowToEntity(rows[0])
}

// FindByNormalizedName returns every ACTIVE entity with the given
// (normalizedName, type), ordered by creation time so the first result is
// insertion-order stable (spec: "pick the first, insertion-order stable").
func (r *EntityRepository) FindByNormalizedName(ctx context.Context, normalizedName string, t models.EntityType) ([]*models.Entity, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (e:Entity {normalizedName: $normalizedName, type: $type, status: $status})
		 RETURN e.id as id, e.canonicalName as canonicalName, e.normalizedName as normalizedName,
		 e.type as type, e.confidenceScore as confidenceScore, e.status as status,
		 e.createdAt as createdAt, e.updatedAt as updatedAt
		 ORDER BY e.createdAt ASC`,
		map[string]any{
			"normalizedName": normalizedName,
			"type":           string(t),
			"status":         string(models.EntityStatusActive),
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to query entities by normalized name")
	}

	entities := make([]*models.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := rowToEntity(row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// FindActiveByType returns every ACTIVE entity of the given type. Used for
// the bounded full-scan fallback when the blocking index returns no
// candidates; callers must log this as the documented bounded event.
func (r *EntityRepository) FindActiveByType(ctx context.Context, t models.EntityType) ([]*models.Entity, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (e:Entity {type: $type, status: $status})
		 RETURN e.id as id, e.canonicalName as canonicalName, e.normalizedName as normalizedName,
		 e.type as type, e.confidenceScore as confidenceScore, e.status as status,
		 e.createdAt as createdAt, e.updatedAt as updatedAt
		 ORDER BY e.createdAt ASC`,
		map[string]any{"type": string(t), "status": string(models.EntityStatusActive)})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to scan active entities")
	}

	entities := make([]*models.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := rowToEntity(row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// TransitionToMerged flips an entity's status ACTIVE -> MERGED. The
// transition is one-way; callers must not call this on an already-MERGED
// entity.
func (r *EntityRepository) TransitionToMerged(ctx context.Context, id string) error {
	err := r.backend.Execute(ctx,
		`MATCH (e:Entity {id: $id, status: $active})
		 SET e.status = $merged, e.updatedAt = $now`,
		map[string]any{
			"id":     id,
			"active": string(models.EntityStatusActive),
			"merged": string(models.EntityStatusMerged),
			"now":    time.Now().UTC(),
		})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to transition entity to MERGED")
	}
	return nil
}

// RestoreToActive reverses TransitionToMerged; used only by merge-step
// compensation.
func (r *EntityRepository) RestoreToActive(ctx context.Context, id string) error {
	err := r.backend.Execute(ctx,
		`MATCH (e:Entity {id: $id})
		 SET e.status = $active, e.updatedAt = $now`,
		map[string]any{"id": id, "active": string(models.EntityStatusActive), "now": time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to restore entity to ACTIVE")
	}
	return nil
}

// CreateMergedInto creates the MERGED_INTO edge from source to target with
// the merge's confidence/reason/timestamp.
func (r *EntityRepository) CreateMergedInto(ctx context.Context, sourceID, targetID string, confidence float64, reason string, mergedAt time.Time) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeEdge(
		"Entity", "id", sourceID,
		"Entity", "id", targetID,
		"MERGED_INTO",
		map[string]any{"confidence": confidence, "reason": reason, "mergedAt": mergedAt},
	)
	if err != nil {
		return errors.InternalErrorf("failed to build MERGED_INTO query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to create MERGED_INTO edge")
	}
	return nil
}

// DeleteMergedInto removes the MERGED_INTO edge, used by merge-step
// compensation.
func (r *EntityRepository) DeleteMergedInto(ctx context.Context, sourceID, targetID string) error {
	err := r.backend.Execute(ctx,
		`MATCH (s:Entity {id: $sourceId})-[m:MERGED_INTO]->(t:Entity {id: $targetId}) DELETE m`,
		map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to delete MERGED_INTO edge")
	}
	return nil
}

// CanonicalOf traverses MERGED_INTO* from id and returns the id of the
// terminal ACTIVE entity. The graph invariant (a MERGED entity has exactly
// one outgoing MERGED_INTO to an ACTIVE entity) guarantees termination.
func (r *EntityRepository) CanonicalOf(ctx context.Context, id string) (string, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (e:Entity {id: $id})
		 OPTIONAL MATCH (e)-[:MERGED_INTO*0..]->(canonical:Entity {status: $active})
		 RETURN coalesce(canonical.id, e.id) as canonicalId
		 LIMIT 1`,
		map[string]any{"id": id, "active": string(models.EntityStatusActive)})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to resolve canonical id")
	}
	if len(rows) == 0 {
		return id, nil
	}
	canonicalID, _ := rows[0]["canonicalId"].(string)
	if canonicalID == "" {
		return id, nil
	}
	return canonicalID, nil
}

// AddBlockingKeys persists BlockingKey nodes and HAS_BLOCKING_KEY edges for
// an entity. Call sites also mirror this into the in-process blocking.Index
// for sub-linear candidate lookup.
func (r *EntityRepository) AddBlockingKeys(ctx context.Context, entityID string, keys []string) error {
	for _, key := range keys {
		builder := graph.NewCypherBuilder()
		cypher, err := builder.BuildMergeNode("BlockingKey", "value", key, map[string]any{"value": key})
		if err != nil {
			return errors.InternalErrorf("failed to build blocking key query: %v", err)
		}
		if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityLow, "failed to create blocking key node")
		}

		edgeBuilder := graph.NewCypherBuilder()
		edgeCypher, err := edgeBuilder.BuildMergeEdge(
			"Entity", "id", entityID,
			"BlockingKey", "value", key,
			"HAS_BLOCKING_KEY",
			nil,
		)
		if err != nil {
			return errors.InternalErrorf("failed to build HAS_BLOCKING_KEY query: %v", err)
		}
		if err := r.backend.Execute(ctx, edgeCypher, edgeBuilder.Params()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityLow, "failed to link entity to blocking key")
		}
	}
	return nil
}

func rowToEntity(row map[string]any) (*models.Entity, error) {
	e := &models.Entity{}
	var ok bool

	if e.ID, ok = row["id"].(string); !ok {
		return nil, errors.InternalError("entity row missing id")
	}
	e.CanonicalName, _ = row["canonicalName"].(string)
	e.NormalizedName, _ = row["normalizedName"].(string)

	typeStr, _ := row["type"].(string)
	e.Type = models.EntityType(typeStr)

	statusStr, _ := row["status"].(string)
	e.Status = models.EntityStatus(statusStr)

	e.ConfidenceScore = toFloat64(row["confidenceScore"])
	e.CreatedAt = toTime(row["createdAt"])
	e.UpdatedAt = toTime(row["updatedAt"])

	return e, nil
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}
