package repository

import (
	"context"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// LedgerRepository appends MergeRecord entries: the one-per-merge,
// append-only ledger distinct from the general audit trail.
type LedgerRepository struct {
	backend graph.Backend
}

// NewLedgerRepository wraps a graph-store collaborator.
func NewLedgerRepository(backend graph.Backend) *LedgerRepository {
	return &LedgerRepository{backend: backend}
}

// Append records a completed merge.
func (r *LedgerRepository) Append(ctx context.Context, rec *models.MergeRecord) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("MergeRecord", "id", rec.ID, map[string]any{
		"id":           rec.ID,
		"sourceId":     rec.SourceID,
		"targetId":     rec.TargetID,
		"sourceName":   rec.SourceName,
		"targetName":   rec.TargetName,
		"confidence":   rec.Confidence,
		"decisionKind": string(rec.DecisionKind),
		"triggeredBy":  rec.TriggeredBy,
		"reasoning":    rec.Reasoning,
		"timestamp":    rec.Timestamp,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build merge record query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "failed to append merge record")
	}
	return nil
}

// ListByTarget returns every merge recorded into a canonical entity, oldest
// first, used to reconstruct a merge history.
func (r *LedgerRepository) ListByTarget(ctx context.Context, targetID string) ([]*models.MergeRecord, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (m:MergeRecord {targetId: $targetId})
		 RETURN m.id as id, m.sourceId as sourceId, m.targetId as targetId, m.sourceName as sourceName,
		 m.targetName as targetName, m.confidence as confidence, m.decisionKind as decisionKind,
		 m.triggeredBy as triggeredBy, m.reasoning as reasoning, m.timestamp as timestamp
		 ORDER BY m.timestamp ASC`,
		map[string]any{"targetId": targetID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list merge records")
	}

	records := make([]*models.MergeRecord, 0, len(rows))
	for _, row := range rows {
		rec := &models.MergeRecord{}
		rec.ID, _ = row["id"].(string)
		rec.SourceID, _ = row["sourceId"].(string)
		rec.TargetID, _ = row["targetId"].(string)
		rec.SourceName, _ = row["sourceName"].(string)
		rec.TargetName, _ = row["targetName"].(string)
		rec.Confidence = toFloat64(row["confidence"])
		decisionStr, _ := row["decisionKind"].(string)
		rec.DecisionKind = models.DecisionKind(decisionStr)
		rec.TriggeredBy, _ = row["triggeredBy"].(string)
		rec.Reasoning, _ = row["reasoning"].(string)
		rec.Timestamp = toTime(row["timestamp"])
		records = append(records, rec)
	}
	return records, nil
}
