package repository

import (
	"context"
	"time"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// ReviewRepository persists ReviewItem records submitted for human
// adjudication of a REVIEW outcome.
type ReviewRepository struct {
	backend graph.Backend
}

// NewReviewRepository wraps a graph-store collaborator.
func NewReviewRepository(backend graph.Backend) *ReviewRepository {
	return &ReviewRepository{backend: backend}
}

// Create inserts a PENDING review item.
func (r *ReviewRepository) Create(ctx context.Context, item *models.ReviewItem) error {
	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("ReviewItem", "id", item.ID, map[string]any{
		"id":                item.ID,
		"sourceEntityId":    item.SourceEntityID,
		"candidateEntityId": item.CandidateEntityID,
		"entityType":        string(item.EntityType),
		"similarityScore":   item.SimilarityScore,
		"status":            string(item.Status),
		"createdAt":         item.CreatedAt,
	})
	if err != nil {
		return errors.InternalErrorf("failed to build review item query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to create review item")
	}
	return nil
}

// ListPending returns every PENDING review item for an entity type, oldest
// first.
func (r *ReviewRepository) ListPending(ctx context.Context, entityType models.EntityType) ([]*models.ReviewItem, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (r:ReviewItem {entityType: $entityType, status: $status})
		 RETURN r.id as id, r.sourceEntityId as sourceEntityId, r.candidateEntityId as candidateEntityId,
		 r.entityType as entityType, r.similarityScore as similarityScore, r.status as status,
		 r.createdAt as createdAt, r.resolvedAt as resolvedAt
		 ORDER BY r.createdAt ASC`,
		map[string]any{"entityType": string(entityType), "status": string(models.ReviewStatusPending)})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list pending review items")
	}

	items := make([]*models.ReviewItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, rowToReviewItem(row))
	}
	return items, nil
}

// GetByID loads a single review item.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.ReviewItem, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (r:ReviewItem {id: $id})
		 RETURN r.id as id, r.sourceEntityId as sourceEntityId, r.candidateEntityId as candidateEntityId,
		 r.entityType as entityType, r.similarityScore as similarityScore, r.status as status,
		 r.createdAt as createdAt, r.resolvedAt as resolvedAt`,
		map[string]any{"id": id})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to query review item")
	}
	if len(rows) == 0 {
		return nil, errors.NotFoundErrorf("review item %s not found", id)
	}
	return rowToReviewItem(rows[0]), nil
}

// Resolve transitions a PENDING review item to APPROVED or REJECTED,
// stamping resolvedAt.
func (r *ReviewRepository) Resolve(ctx context.Context, id string, status models.ReviewStatus) error {
	if status != models.ReviewStatusApproved && status != models.ReviewStatusRejected {
		return errors.InvalidInputErrorf("invalid review resolution status %q", status)
	}
	err := r.backend.Execute(ctx,
		`MATCH (r:ReviewItem {id: $id, status: $pending})
		 SET r.status = $status, r.resolvedAt = $resolvedAt`,
		map[string]any{
			"id":         id,
			"pending":    string(models.ReviewStatusPending),
			"status":     string(status),
			"resolvedAt": time.Now().UTC(),
		})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to resolve review item")
	}
	return nil
}

func rowToReviewItem(row map[string]any) *models.ReviewItem {
	item := &models.ReviewItem{}
	item.ID, _ = row["id"].(string)
	item.SourceEntityID, _ = row["sourceEntityId"].(string)
	item.CandidateEntityID, _ = row["candidateEntityId"].(string)
	entityTypeStr, _ := row["entityType"].(string)
	item.EntityType = models.EntityType(entityTypeStr)
	item.SimilarityScore = toFloat64(row["similarityScore"])
	statusStr, _ := row["status"].(string)
	item.Status = models.ReviewStatus(statusStr)
	item.CreatedAt = toTime(row["createdAt"])
	if resolvedAt, ok := row["resolvedAt"].(time.Time); ok {
		item.ResolvedAt = &resolvedAt
	}
	return item
}
