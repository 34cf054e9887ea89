package repository

import (
	"context"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// RelationshipRepository persists library-managed edges (LIBRARY_REL) and
// migrates them between entities at merge time.
type RelationshipRepository struct {
	backend graph.Backend
}

// NewRelationshipRepository wraps a graph-store collaborator.
func NewRelationshipRepository(backend graph.Backend) *RelationshipRepository {
	return &RelationshipRepository{backend: backend}
}

// Create adds a library-managed relationship between two entities. A
// RelationshipType that fails graph.IsValidRelationshipType is rejected
// with an invalid-input error before anything is written.
func (r *RelationshipRepository) Create(ctx context.Context, rel *models.LibraryRelationship) error {
	if !graph.IsValidRelationshipType(rel.RelationshipType) {
		return errors.InvalidInputErrorf("invalid relationship type %q", rel.RelationshipType)
	}

	properties := map[string]any{
		"id":        rel.ID,
		"type":      rel.RelationshipType,
		"createdAt": rel.CreatedAt,
		"createdBy": rel.CreatedBy,
	}
	for k, v := range rel.Properties {
		properties[k] = v
	}

	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeEdge(
		"Entity", "id", rel.SourceEntityID,
		"Entity", "id", rel.TargetEntityID,
		"LIBRARY_REL",
		properties,
	)
	if err != nil {
		return errors.InternalErrorf("failed to build LIBRARY_REL query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to create library relationship")
	}
	return nil
}

// MigrateOutgoing re-points every LIBRARY_REL edge originating at sourceID
// onto targetID, preserving edge type and properties. Used during a merge's
// relationship-migration step; returns the count of edges migrated.
func (r *RelationshipRepository) MigrateOutgoing(ctx context.Context, sourceID, targetID string) (int, error) {
	migrated := 0
	countRows, err := r.backend.Query(ctx,
		`MATCH (s:Entity {id: $sourceId})-[rel:LIBRARY_REL]-(other:Entity)
		 WHERE other.id <> $targetId
		 RETURN count(rel) as c`,
		map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err == nil && len(countRows) > 0 {
		migrated = toInt(countRows[0]["c"])
	}

	err = r.backend.Execute(ctx,
		`MATCH (s:Entity {id: $sourceId})-[rel:LIBRARY_REL]->(other:Entity)
		 WHERE other.id <> $targetId
		 MATCH (t:Entity {id: $targetId})
		 CALL {
		   WITH rel, other, t
		   CREATE (t)-[newRel:LIBRARY_REL]->(other)
		   SET newRel = properties(rel)
		 }
		 DELETE rel`,
		map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to migrate outgoing relationships")
	}

	err = r.backend.Execute(ctx,
		`MATCH (other:Entity)-[rel:LIBRARY_REL]->(s:Entity {id: $sourceId})
		 WHERE other.id <> $targetId
		 MATCH (t:Entity {id: $targetId})
		 CALL {
		   WITH rel, other, t
		   CREATE (other)-[newRel:LIBRARY_REL]->(t)
		   SET newRel = properties(rel)
		 }
		 DELETE rel`,
		map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to migrate incoming relationships")
	}

	return migrated, nil
}

// genericEdgeExclusions lists relationship types owned by another repository
// (or by the merge machinery itself) and therefore excluded from
// MigrateGenericEdges — each has its own dedicated migration/compensation
// logic in the merge saga.
var genericEdgeExclusions = []string{
	"LIBRARY_REL", "MERGED_INTO", "SYNONYM_OF", "DUPLICATE_OF", "HAS_BLOCKING_KEY",
}

// MigrateGenericEdges re-points every edge touching sourceID, other than the
// library-managed and library-owned types above, onto targetID. This covers
// arbitrary non-library relationships a caller created directly against the
// graph. Edge identity is not preserved across the move (reconstruction by
// type+properties only), matching the saga's documented best-effort
// reversal for this step. Returns the count of edges migrated.
func (r *RelationshipRepository) MigrateGenericEdges(ctx context.Context, sourceID, targetID string) (int, error) {
	migrated := 0
	countRows, err := r.backend.Query(ctx,
		`MATCH (s:Entity {id: $sourceId})-[rel]-(other:Entity)
		 WHERE other.id <> $targetId AND NOT type(rel) IN $excluded
		 RETURN count(rel) as c`,
		map[string]any{"sourceId": sourceID, "targetId": targetID, "excluded": genericEdgeExclusions})
	if err == nil && len(countRows) > 0 {
		migrated = toInt(countRows[0]["c"])
	}

	err = r.backend.Execute(ctx,
		`MATCH (s:Entity {id: $sourceId})-[rel]->(other:Entity)
		 WHERE other.id <> $targetId AND NOT type(rel) IN $excluded
		 MATCH (t:Entity {id: $targetId})
		 CALL {
		   WITH rel, other, t
		   CALL apoc.create.relationship(t, type(rel), properties(rel), other) YIELD rel as newRel
		   RETURN newRel
		 }
		 DELETE rel`,
		map[string]any{"sourceId": sourceID, "targetId": targetID, "excluded": genericEdgeExclusions})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to migrate outgoing generic edges")
	}

	err = r.backend.Execute(ctx,
		`MATCH (other:Entity)-[rel]->(s:Entity {id: $sourceId})
		 WHERE other.id <> $targetId AND NOT type(rel) IN $excluded
		 MATCH (t:Entity {id: $targetId})
		 CALL {
		   WITH rel, other, t
		   CALL apoc.create.relationship(other, type(rel), properties(rel), t) YIELD rel as newRel
		   RETURN newRel
		 }
		 DELETE rel`,
		map[string]any{"sourceId": sourceID, "targetId": targetID, "excluded": genericEdgeExclusions})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to migrate incoming generic edges")
	}

	return migrated, nil
}

// ListByEntity returns every LIBRARY_REL edge touching an entity in either
// direction.
func (r *RelationshipRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.LibraryRelationship, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (s:Entity {id: $entityId})-[rel:LIBRARY_REL]->(t:Entity)
		 RETURN rel.id as id, s.id as sourceEntityId, t.id as targetEntityId, rel.type as relationshipType,
		 rel.createdAt as createdAt, rel.createdBy as createdBy`,
		map[string]any{"entityId": entityID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list relationships")
	}

	rels := make([]*models.LibraryRelationship, 0, len(rows))
	for _, row := range rows {
		rel := &models.LibraryRelationship{}
		rel.ID, _ = row["id"].(string)
		rel.SourceEntityID, _ = row["sourceEntityId"].(string)
		rel.TargetEntityID, _ = row["targetEntityId"].(string)
		rel.RelationshipType, _ = row["relationshipType"].(string)
		rel.CreatedAt = toTime(row["createdAt"])
		rel.CreatedBy, _ = row["createdBy"].(string)
		rels = append(rels, rel)
	}
	return rels, nil
}
