// Package merge implements the saga that collapses a source entity into a
// target entity: no cross-statement transaction is available on the graph
// store, so correctness comes from a stack of compensations run in reverse
// on failure, not from atomicity.
package merge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
)

// Strategy selects which entity's attributes survive a merge. KeepTarget
// is the only strategy implemented: the target's canonical attributes are
// untouched, the source is transitioned to MERGED.
type Strategy string

const StrategyKeepTarget Strategy = "KEEP_TARGET"

// MatchResult carries the confidence and reasoning that triggered this
// merge, persisted onto the ledger entry and the MERGED_INTO edge.
type MatchResult struct {
	Confidence float64
	Reasoning  string
}

// Result is returned on both success and failure. On failure,
// CompensationErrors holds every error encountered while unwinding
// (potentially empty even on failure, if no step had completed yet).
type Result struct {
	Success                bool
	SourceID               string
	TargetID               string
	SynonymID              string
	DuplicateEntityID      string
	RelationshipsMigrated  int
	CompensationErrors     []error
}

// Engine implements the six-step merge saga.
type Engine struct {
	entities      *repository.EntityRepository
	synonyms      *repository.SynonymRepository
	duplicates    *repository.DuplicateRepository
	relationships *repository.RelationshipRepository
	ledger        *repository.LedgerRepository
	audit         *repository.AuditRepository
	logger        *slog.Logger
}

// NewEngine wires the saga's repository collaborators.
func NewEngine(
	entities *repository.EntityRepository,
	synonyms *repository.SynonymRepository,
	duplicates *repository.DuplicateRepository,
	relationships *repository.RelationshipRepository,
	ledger *repository.LedgerRepository,
	audit *repository.AuditRepository,
) *Engine {
	return &Engine{
		entities:      entities,
		synonyms:      synonyms,
		duplicates:    duplicates,
		relationships: relationships,
		ledger:        ledger,
		audit:         audit,
		logger:        slog.Default().With("component", "merge_engine"),
	}
}

// CanMerge reports whether source and target satisfy the merge
// preconditions: both exist, both ACTIVE, same type, different ids.
func (e *Engine) CanMerge(ctx context.Context, sourceID, targetID string) (*models.Entity, *models.Entity, error) {
	if sourceID == targetID {
		return nil, nil, errors.InvalidInputError("cannot merge an entity into itself")
	}

	source, err := e.entities.GetByID(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	target, err := e.entities.GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}

	if source.Status != models.EntityStatusActive {
		return nil, nil, errors.InvalidInputErrorf("source entity %s is not ACTIVE", sourceID)
	}
	if target.Status != models.EntityStatusActive {
		return nil, nil, errors.InvalidInputErrorf("target entity %s is not ACTIVE", targetID)
	}
	if source.Type != target.Type {
		return nil, nil, errors.InvalidInputErrorf("cannot merge entities of different types (%s vs %s)", source.Type, target.Type)
	}

	return source, target, nil
}

// Merge collapses sourceID into targetID, running each of the six saga
// steps in order. On any step's failure, every prior step's compensation
// runs in reverse order before the error is returned.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID string, match MatchResult, triggeredBy string, strategy Strategy) (*Result, error) {
	source, target, err := e.CanMerge(ctx, sourceID, targetID)
	if err != nil {
		return nil, err
	}

	stack := &compensationStack{}
	result := &Result{SourceID: sourceID, TargetID: targetID}

	fail := func(cause error) (*Result, error) {
		result.CompensationErrors = stack.unwind(ctx)
		if len(result.CompensationErrors) > 0 {
			e.logger.Error("merge compensation encountered errors",
				"source_id", sourceID, "target_id", targetID, "errors", len(result.CompensationErrors))
		}
		return result, errors.MergeFailedError(cause, "merge saga failed")
	}

	// Step 1: create a synonym for source's canonical name on target,
	// unless an equivalent one (case-insensitive on value) already exists.
	existingSynonyms, err := e.synonyms.ListByEntity(ctx, targetID)
	if err != nil {
		return fail(err)
	}
	if !hasSynonymValue(existingSynonyms, source.CanonicalName) {
		synonymID := uuid.NewString()
		now := time.Now().UTC()
		syn := &models.Synonym{
			ID:              synonymID,
			Value:           source.CanonicalName,
			NormalizedValue: source.NormalizedName,
			Source:          models.SynonymSourceSystem,
			Confidence:      match.Confidence,
			CreatedAt:       now,
			LastConfirmedAt: now,
			SupportCount:    1,
			EntityID:        targetID,
		}
		if err := e.synonyms.Create(ctx, syn); err != nil {
			return fail(err)
		}
		result.SynonymID = synonymID
		stack.push(func(ctx context.Context) error {
			return e.synonyms.DeleteByID(ctx, synonymID)
		})
		if err := e.audit.Append(ctx, &models.AuditEntry{
			ID:       uuid.NewString(),
			Action:   models.ActionSynonymCreated,
			EntityID: targetID,
			ActorID:  triggeredBy,
			Details: map[string]interface{}{
				"synonymId": synonymID,
				"value":     syn.Value,
				"sourceId":  sourceID,
			},
			Timestamp: now,
		}); err != nil {
			e.logger.Warn("failed to append synonym-created audit entry", "error", err, "synonym_id", synonymID)
		}
	}

	// Step 2: record a DuplicateEntity audit node linked to target.
	duplicateID := uuid.NewString()
	dup := &models.DuplicateEntity{
		ID:             duplicateID,
		OriginalName:   source.CanonicalName,
		NormalizedName: source.NormalizedName,
		SourceSystem:   triggeredBy,
		TargetEntityID: targetID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.duplicates.Create(ctx, dup); err != nil {
		return fail(err)
	}
	result.DuplicateEntityID = duplicateID
	stack.push(func(ctx context.Context) error {
		return e.duplicates.DeleteByID(ctx, duplicateID)
	})

	// Step 3: migrate library-managed relationships from source to target.
	libCount, err := e.relationships.MigrateOutgoing(ctx, sourceID, targetID)
	if err != nil {
		return fail(err)
	}
	stack.push(func(ctx context.Context) error {
		_, err := e.relationships.MigrateOutgoing(ctx, targetID, sourceID)
		return err
	})

	// Step 4: migrate arbitrary non-library edges (best-effort reversal;
	// edge identity is by reconstruction, not preserved).
	genericCount, err := e.relationships.MigrateGenericEdges(ctx, sourceID, targetID)
	if err != nil {
		return fail(err)
	}
	result.RelationshipsMigrated = libCount + genericCount
	stack.push(func(ctx context.Context) error {
		_, err := e.relationships.MigrateGenericEdges(ctx, targetID, sourceID)
		return err
	})
	if result.RelationshipsMigrated > 0 {
		if err := e.audit.Append(ctx, &models.AuditEntry{
			ID:       uuid.NewString(),
			Action:   models.ActionRelationshipsMigrated,
			EntityID: targetID,
			ActorID:  triggeredBy,
			Details: map[string]interface{}{
				"sourceId": sourceID,
				"count":    result.RelationshipsMigrated,
			},
			Timestamp: time.Now().UTC(),
		}); err != nil {
			e.logger.Warn("failed to append relationships-migrated audit entry", "error", err, "source_id", sourceID, "target_id", targetID)
		}
	}

	// Step 5: transition source ACTIVE -> MERGED, create MERGED_INTO.
	mergedAt := time.Now().UTC()
	if err := e.entities.TransitionToMerged(ctx, sourceID); err != nil {
		return fail(err)
	}
	stack.push(func(ctx context.Context) error {
		return e.entities.RestoreToActive(ctx, sourceID)
	})
	if err := e.entities.CreateMergedInto(ctx, sourceID, targetID, match.Confidence, match.Reasoning, mergedAt); err != nil {
		return fail(err)
	}
	stack.push(func(ctx context.Context) error {
		return e.entities.DeleteMergedInto(ctx, sourceID, targetID)
	})

	// Step 6: record the ledger entry and audit event. Success commits —
	// compensations never run past this point even if these best-effort
	// writes fail, since the merge itself has already fully applied.
	record := &models.MergeRecord{
		ID:           uuid.NewString(),
		SourceID:     sourceID,
		TargetID:     targetID,
		SourceName:   source.CanonicalName,
		TargetName:   target.CanonicalName,
		Confidence:   match.Confidence,
		DecisionKind: models.DecisionAutoMerge,
		TriggeredBy:  triggeredBy,
		Reasoning:    match.Reasoning,
		Timestamp:    mergedAt,
	}
	if err := e.ledger.Append(ctx, record); err != nil {
		e.logger.Warn("failed to append merge ledger entry", "error", err, "source_id", sourceID, "target_id", targetID)
	}
	if err := e.audit.Append(ctx, &models.AuditEntry{
		ID:       uuid.NewString(),
		Action:   models.ActionEntityMerged,
		EntityID: targetID,
		ActorID:  triggeredBy,
		Details: map[string]interface{}{
			"sourceId":   sourceID,
			"confidence": match.Confidence,
			"reasoning":  match.Reasoning,
		},
		Timestamp: mergedAt,
	}); err != nil {
		e.logger.Warn("failed to append merge audit entry", "error", err, "source_id", sourceID, "target_id", targetID)
	}

	result.Success = true
	return result, nil
}

// GetMergeHistory returns every merge recorded with targetID as the
// surviving entity, oldest first.
func (e *Engine) GetMergeHistory(ctx context.Context, targetID string) ([]*models.MergeRecord, error) {
	return e.ledger.ListByTarget(ctx, targetID)
}

func hasSynonymValue(synonyms []*models.Synonym, value string) bool {
	for _, s := range synonyms {
		if strings.EqualFold(s.Value, value) {
			return true
		}
	}
	return false
}
