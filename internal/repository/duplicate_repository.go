package repository

import (
	"context"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// DuplicateRepository persists DuplicateEntity audit records and their
// DUPLICATE_OF edge to the canonical entity they resolved into.
type DuplicateRepository struct {
	backend graph.Backend
}

// NewDuplicateRepository wraps a graph-store collaborator.
func NewDuplicateRepository(backend graph.Backend) *DuplicateRepository {
	return &DuplicateRepository{backend: backend}
}

// Create records a source-side duplicate and links it to the entity it
// resolved into.
func (r *DuplicateRepository) Create(ctx context.Context, d *models.DuplicateEntity) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("DuplicateEntity", "id", d.ID, map[string]any{
		"id":             d.ID,
		"originalName":   d.OriginalName,
		"normalizedName": d.NormalizedName,
		"sourceSystem":   d.SourceSystem,
		"createdAt":      d.CreatedAt,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build duplicate create query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to create duplicate record")
	}

	edgeBuilder := graph.NewCypherBuilder()
	edgeCypher, err := edgeBuilder.BuildMergeEdge(
		"DuplicateEntity", "id", d.ID,
		"Entity", "id", d.TargetEntityID,
		"DUPLICATE_OF",
		nil,
	)
	if err != nil {
		return errors.InternalErrorf("failed to build DUPLICATE_OF query: %v", err)
	}
	if err := r.backend.Execute(ctx, edgeCypher, edgeBuilder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to link duplicate to target entity")
	}
	return nil
}

// DeleteByID removes a duplicate record and its DUPLICATE_OF edge. Used as
// a merge-saga compensation for a record created earlier in the same saga.
func (r *DuplicateRepository) DeleteByID(ctx context.Context, id string) error {
	err := r.backend.Execute(ctx, `MATCH (d:DuplicateEntity {id: $id}) DETACH DELETE d`, map[string]any{"id": id})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to delete duplicate record")
	}
	return nil
}

// ListByTarget returns every duplicate recorded against an entity, used for
// provenance display.
func (r *DuplicateRepository) ListByTarget(ctx context.Context, targetEntityID string) ([]*models.DuplicateEntity, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (d:DuplicateEntity)-[:DUPLICATE_OF]->(e:Entity {id: $targetId})
		 RETURN d.id as id, d.originalName as originalName, d.normalizedName as normalizedName,
		 d.sourceSystem as sourceSystem, d.createdAt as createdAt`,
		map[string]any{"targetId": targetEntityID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list duplicates")
	}

	duplicates := make([]*models.DuplicateEntity, 0, len(rows))
	for _, row := range rows {
		d := &models.DuplicateEntity{TargetEntityID: targetEntityID}
		d.ID, _ = row["id"].(string)
		d.OriginalName, _ = row["originalName"].(string)
		d.NormalizedName, _ = row["normalizedName"].(string)
		d.SourceSystem, _ = row["sourceSystem"].(string)
		d.CreatedAt = toTime(row["createdAt"])
		duplicates = append(duplicates, d)
	}
	return duplicates, nil
}
