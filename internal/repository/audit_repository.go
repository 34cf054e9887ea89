package repository

import (
	"context"
	"encoding/json"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// AuditRepository appends provenance records. The audit trail is
// append-only: no update or delete method is exposed.
type AuditRepository struct {
	backend graph.Backend
}

// NewAuditRepository wraps a graph-store collaborator.
func NewAuditRepository(backend graph.Backend) *AuditRepository {
	return &AuditRepository{backend: backend}
}

// Append records a single audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return errors.InternalErrorf("failed to marshal audit details: %v", err)
	}

	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("AuditEntry", "id", entry.ID, map[string]any{
		"id":        entry.ID,
		"action":    string(entry.Action),
		"entityId":  entry.EntityID,
		"actorId":   entry.ActorID,
		"details":   string(detailsJSON),
		"timestamp": entry.Timestamp,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build audit entry query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to append audit entry")
	}
	return nil
}

// ListByEntity returns every audit entry recorded against an entity, most
// recent first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditEntry, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (a:AuditEntry {entityId: $entityId})
		 RETURN a.id as id, a.action as action, a.entityId as entityId, a.actorId as actorId,
		 a.details as details, a.timestamp as timestamp
		 ORDER BY a.timestamp DESC`,
		map[string]any{"entityId": entityID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list audit entries")
	}

	entries := make([]*models.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := &models.AuditEntry{}
		entry.ID, _ = row["id"].(string)
		actionStr, _ := row["action"].(string)
		entry.Action = models.AuditAction(actionStr)
		entry.EntityID, _ = row["entityId"].(string)
		entry.ActorID, _ = row["actorId"].(string)
		entry.Timestamp = toTime(row["timestamp"])

		if detailsStr, ok := row["details"].(string); ok && detailsStr != "" {
			var details map[string]interface{}
			if err := json.Unmarshal([]byte(detailsStr), &details); err == nil {
				entry.Details = details
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
