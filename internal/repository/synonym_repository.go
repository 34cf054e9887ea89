package repository

import (
	"context"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// SynonymRepository persists and queries Synonym nodes and their SYNONYM_OF
// edge to the owning entity.
type SynonymRepository struct {
	backend graph.Backend
}

// NewSynonymRepository wraps a graph-store collaborator.
func NewSynonymRepository(backend graph.Backend) *SynonymRepository {
	return &SynonymRepository{backend: backend}
}

// Create inserts a synonym node and links it to its owning entity via
// SYNONYM_OF.
func (r *SynonymRepository) Create(ctx context.Context, s *models.Synonym) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("Synonym", "id", s.ID, map[string]any{
		"id":              s.ID,
		"value":           s.Value,
		"normalizedValue": s.NormalizedValue,
		"source":          string(s.Source),
		"confidence":      s.Confidence,
		"createdAt":       s.CreatedAt,
		"lastConfirmedAt": s.LastConfirmedAt,
		"supportCount":    s.SupportCount,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build synonym create query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to create synonym")
	}

	edgeBuilder := graph.NewCypherBuilder()
	edgeCypher, err := edgeBuilder.BuildMergeEdge(
		"Synonym", "id", s.ID,
		"Entity", "id", s.EntityID,
		"SYNONYM_OF",
		nil,
	)
	if err != nil {
		return errors.InternalErrorf("failed to build SYNONYM_OF query: %v", err)
	}
	if err := r.backend.Execute(ctx, edgeCypher, edgeBuilder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to link synonym to entity")
	}
	return nil
}

// DeleteByID removes a synonym node and its SYNONYM_OF edge. Used as a
// merge-saga compensation for a synonym created earlier in the same saga.
func (r *SynonymRepository) DeleteByID(ctx context.Context, id string) error {
	err := r.backend.Execute(ctx, `MATCH (s:Synonym {id: $id}) DETACH DELETE s`, map[string]any{"id": id})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to delete synonym")
	}
	return nil
}

// IncrementSupport bumps SupportCount and LastConfirmedAt on an existing
// synonym, used when the same variant is seen again during resolution.
func (r *SynonymRepository) IncrementSupport(ctx context.Context, synonymID string, confirmedAt interface{}) error {
	err := r.backend.Execute(ctx,
		`MATCH (s:Synonym {id: $id}) SET s.supportCount = s.supportCount + 1, s.lastConfirmedAt = $confirmedAt`,
		map[string]any{"id": synonymID, "confirmedAt": confirmedAt})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityLow, "failed to increment synonym support count")
	}
	return nil
}

// FindByNormalizedValue looks up synonyms whose normalizedValue exactly
// matches, restricted to entities of the given type, and returns them with
// their owning entity id.
func (r *SynonymRepository) FindByNormalizedValue(ctx context.Context, normalizedValue string, t models.EntityType) ([]*models.Synonym, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (s:Synonym {normalizedValue: $normalizedValue})-[:SYNONYM_OF]->(e:Entity {type: $type, status: $active})
		 RETURN s.id as id, s.value as value, s.normalizedValue as normalizedValue, s.source as source,
		 s.confidence as confidence, s.createdAt as createdAt, s.lastConfirmedAt as lastConfirmedAt,
		 s.supportCount as supportCount, e.id as entityId
		 ORDER BY s.createdAt ASC`,
		map[string]any{
			"normalizedValue": normalizedValue,
			"type":            string(t),
			"active":          string(models.EntityStatusActive),
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to query synonyms")
	}

	synonyms := make([]*models.Synonym, 0, len(rows))
	for _, row := range rows {
		synonyms = append(synonyms, rowToSynonym(row))
	}
	return synonyms, nil
}

// ListByEntity returns every synonym attached to an entity, used to build
// the textual context for ContextScorer and by the merge saga to skip a
// synonym the target already has.
func (r *SynonymRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.Synonym, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (s:Synonym)-[:SYNONYM_OF]->(e:Entity {id: $entityId})
		 RETURN s.id as id, s.value as value, s.normalizedValue as normalizedValue, s.source as source,
		 s.confidence as confidence, s.createdAt as createdAt, s.lastConfirmedAt as lastConfirmedAt,
		 s.supportCount as supportCount, e.id as entityId`,
		map[string]any{"entityId": entityID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list synonyms for entity")
	}

	synonyms := make([]*models.Synonym, 0, len(rows))
	for _, row := range rows {
		synonyms = append(synonyms, rowToSynonym(row))
	}
	return synonyms, nil
}

// RepointToEntity re-parents every synonym of sourceID onto targetID,
// replacing their SYNONYM_OF edge. The merge saga does not call it; a
// merged source keeps its own synonyms.
func (r *SynonymRepository) RepointToEntity(ctx context.Context, sourceID, targetID string) error {
	err := r.backend.Execute(ctx,
		`MATCH (s:Synonym)-[old:SYNONYM_OF]->(:Entity {id: $sourceId})
		 MATCH (t:Entity {id: $targetId})
		 DELETE old
		 MERGE (s)-[:SYNONYM_OF]->(t)`,
		map[string]any{"sourceId": sourceID, "targetId": targetID})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to repoint synonyms")
	}
	return nil
}

func rowToSynonym(row map[string]any) *models.Synonym {
	s := &models.Synonym{}
	s.ID, _ = row["id"].(string)
	s.Value, _ = row["value"].(string)
	s.NormalizedValue, _ = row["normalizedValue"].(string)
	sourceStr, _ := row["source"].(string)
	s.Source = models.SynonymSource(sourceStr)
	s.Confidence = toFloat64(row["confidence"])
	s.CreatedAt = toTime(row["createdAt"])
	s.LastConfirmedAt = toTime(row["lastConfirmedAt"])
	s.SupportCount = toInt(row["supportCount"])
	s.EntityID, _ = row["entityId"].(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
