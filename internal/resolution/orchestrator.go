// Package resolution implements the end-to-end decision pipeline that
// turns a raw entity mention into a resolved, merge-stable graph entity:
// normalize, check cache, lock the logical key, look for an exact or
// synonym match, fall back to blocked fuzzy scoring (optionally sharpened
// by an LLM judgment in the ambiguous band), then act on the outcome.
package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entitygraph/resolver/internal/blocking"
	"github.com/entitygraph/resolver/internal/cache"
	"github.com/entitygraph/resolver/internal/entityref"
	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/llm"
	"github.com/entitygraph/resolver/internal/merge"
	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/normalize"
	"github.com/entitygraph/resolver/internal/repository"
	"github.com/entitygraph/resolver/internal/reviewqueue"
	"github.com/entitygraph/resolver/internal/similarity"
)

// lockTTL bounds how long a single resolution may hold the logical
// (normalizedName, type) lock before another waiter can steal it.
const lockTTL = 10 * time.Second

// Orchestrator wires every resolution collaborator into the pipeline
// described in its package doc. Grounded on the teacher's
// ingestion.Orchestrator: one struct holding every stage's collaborator,
// one exported entry point per unit of work.
type Orchestrator struct {
	normalizer       *normalize.Engine
	entities         *repository.EntityRepository
	synonyms         *repository.SynonymRepository
	decisions        *repository.DecisionRepository
	audit            *repository.AuditRepository
	mergeEngine      *merge.Engine
	reviewQueue      reviewqueue.Queue
	llmProvider      llm.Provider
	cache            *cache.ResolutionCache
	lock             cache.DistributedLock
	blockingIndex    *blocking.Index
	blockingStrategy blocking.Strategy
	contextScorer    *graph.ContextScorer
	logger           *slog.Logger
}

// NewOrchestrator builds an Orchestrator over a graph-store collaborator.
// llmProvider and reviewQueue may be nil; they default to llm.Disabled()
// and reviewqueue.Noop() respectively.
func NewOrchestrator(
	backend graph.Backend,
	resCache *cache.ResolutionCache,
	distLock cache.DistributedLock,
	llmProvider llm.Provider,
	reviewQueue reviewqueue.Queue,
) *Orchestrator {
	entities := repository.NewEntityRepository(backend)
	synonyms := repository.NewSynonymRepository(backend)
	duplicates := repository.NewDuplicateRepository(backend)
	relationships := repository.NewRelationshipRepository(backend)
	ledger := repository.NewLedgerRepository(backend)
	audit := repository.NewAuditRepository(backend)

	if llmProvider == nil {
		llmProvider = llm.Disabled()
	}
	if reviewQueue == nil {
		reviewQueue = reviewqueue.Noop()
	}
	if distLock == nil {
		distLock = cache.NewLocalLock()
	}

	return &Orchestrator{
		normalizer:       normalize.NewEngine(),
		entities:         entities,
		synonyms:         synonyms,
		decisions:        repository.NewDecisionRepository(backend),
		audit:            audit,
		mergeEngine:      merge.NewEngine(entities, synonyms, duplicates, relationships, ledger, audit),
		reviewQueue:      reviewQueue,
		llmProvider:      llmProvider,
		cache:            resCache,
		lock:             distLock,
		blockingIndex:    blocking.NewIndex(),
		blockingStrategy: blocking.DefaultStrategy{},
		contextScorer:    graph.NewContextScorer(),
		logger:           slog.Default().With("component", "resolution_orchestrator"),
	}
}

// Resolve runs the full pipeline for a single mention.
func (o *Orchestrator) Resolve(ctx context.Context, input Input, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.InvalidInputError("entity name must not be empty")
	}
	if !input.Type.Validate() {
		return nil, errors.InvalidInputErrorf("unknown entity type %q", input.Type)
	}
	if input.CorrelationID == "" {
		input.CorrelationID = uuid.NewString()
	}

	normalized := o.normalizer.Normalize(input.Name, input.Type)

	if result := o.fromCache(ctx, normalized, input); result != nil {
		return result, nil
	}

	lockKey := cache.Key(normalized, input.Type)
	held, err := o.lock.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return nil, errors.LockTimeoutError(fmt.Sprintf("could not acquire resolution lock for %q: %v", normalized, err))
	}
	defer func() {
		if relErr := held.Release(ctx); relErr != nil {
			o.logger.Warn("failed to release resolution lock", "key", lockKey, "error", relErr)
		}
	}()

	// Double-check: another holder may have resolved this exact key while
	// we were waiting for the lock.
	if result := o.fromCache(ctx, normalized, input); result != nil {
		return result, nil
	}

	if result, err := o.matchExact(ctx, normalized, input); err != nil || result != nil {
		return result, err
	}

	if result, err := o.matchSynonym(ctx, normalized, input); err != nil || result != nil {
		return result, err
	}

	return o.matchFuzzy(ctx, normalized, input, opts)
}

// fromCache returns a ready Result if normalized resolves to a cached
// canonical id, re-read through CanonicalOf so a merge recorded after the
// cache entry was set is still honored.
func (o *Orchestrator) fromCache(ctx context.Context, normalized string, input Input) *Result {
	if o.cache == nil {
		return nil
	}
	cachedID, ok := o.cache.Get(normalized, input.Type)
	if !ok {
		return nil
	}
	canonicalID, err := o.entities.CanonicalOf(ctx, cachedID)
	if err != nil {
		return nil
	}
	entity, err := o.entities.GetByID(ctx, canonicalID)
	if err != nil {
		return nil
	}
	if canonicalID != cachedID {
		o.cache.Set(normalized, input.Type, canonicalID)
	}
	// The cache is populated by every outcome except REVIEW (exact,
	// synonym, auto-merge, new synonym, new entity), and each of those
	// leaves an exact or synonym match for this name in the graph, so a
	// repeat lookup would be an AUTO_MERGE at confidence 1.0; a hit replays
	// that decision without re-deriving it. Which path populated the entry
	// isn't recorded, so WasMatchedViaSynonym can't be reconstructed here;
	// it is left false.
	return &Result{
		Ref:           entityref.NewWithResolver(entity.ID, string(entity.Type), o.resolveCanonical),
		Entity:        entity,
		Decision:      models.DecisionAutoMerge,
		Confidence:    1.0,
		Reasoning:     "cached",
		InputName:     input.Name,
		MatchedName:   entity.CanonicalName,
		CorrelationID: input.CorrelationID,
	}
}

// matchExact looks for an entity whose normalized name is identical to the
// input's. A nil, nil return means "no exact match, keep going".
func (o *Orchestrator) matchExact(ctx context.Context, normalized string, input Input) (*Result, error) {
	candidates, err := o.entities.FindByNormalizedName(ctx, normalized, input.Type)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	entity := candidates[0] // insertion-order stable
	o.cacheSet(normalized, input.Type, entity.ID)
	synonyms, err := o.synonyms.ListByEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	return &Result{
		Ref:           entityref.NewWithResolver(entity.ID, string(entity.Type), o.resolveCanonical),
		Entity:        entity,
		Synonyms:      synonyms,
		Decision:      models.DecisionAutoMerge,
		Confidence:    1.0,
		Reasoning:     "exact",
		InputName:     input.Name,
		MatchedName:   entity.CanonicalName,
		CorrelationID: input.CorrelationID,
	}, nil
}

// matchSynonym looks for a known synonym whose normalized value matches.
func (o *Orchestrator) matchSynonym(ctx context.Context, normalized string, input Input) (*Result, error) {
	candidates, err := o.synonyms.FindByNormalizedValue(ctx, normalized, input.Type)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	syn := candidates[0]
	if err := o.synonyms.IncrementSupport(ctx, syn.ID, time.Now().UTC()); err != nil {
		o.logger.Warn("failed to increment synonym support count", "synonym_id", syn.ID, "error", err)
	}
	entity, err := o.entities.GetByID(ctx, syn.EntityID)
	if err != nil {
		return nil, err
	}
	o.cacheSet(normalized, input.Type, entity.ID)
	return &Result{
		Ref:                  entityref.NewWithResolver(entity.ID, string(entity.Type), o.resolveCanonical),
		Entity:               entity,
		Synonyms:             candidates,
		Decision:             models.DecisionAutoMerge,
		Confidence:           1.0,
		Reasoning:            "synonym",
		WasMatchedViaSynonym: true,
		InputName:            input.Name,
		MatchedName:          syn.Value,
		CorrelationID:        input.CorrelationID,
	}, nil
}

// matchFuzzy runs blocked composite-similarity scoring over active
// entities of the input's type, records a MatchDecisionRecord for every
// candidate considered, and acts on the best-scoring outcome.
func (o *Orchestrator) matchFuzzy(ctx context.Context, normalized string, input Input, opts Options) (*Result, error) {
	keys := o.blockingStrategy.Keys(normalized)
	candidateIDs := o.blockingIndex.Candidates(keys)

	var candidates []*models.Entity
	if len(candidateIDs) == 0 {
		o.logger.Warn("blocking index returned no candidates, falling back to bounded full scan",
			"normalized_name", normalized, "type", input.Type)
		scanned, err := o.entities.FindActiveByType(ctx, input.Type)
		if err != nil {
			return nil, err
		}
		candidates = scanned
	} else {
		for _, id := range candidateIDs {
			e, err := o.entities.GetByID(ctx, id)
			if err != nil {
				continue
			}
			if e.Status == models.EntityStatusActive {
				candidates = append(candidates, e)
			}
		}
		// The index returns ids in no fixed order; order them by creation
		// time, as the full scan does, so ties go to the earliest entity.
		sort.SliceStable(candidates, func(i, j int) bool {
			if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
				return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
			}
			return candidates[i].ID < candidates[j].ID
		})
	}

	var best *models.Entity
	var bestBreakdown similarity.Breakdown
	var bestExact float64
	var bestGraphContext *float64

	for _, candidate := range candidates {
		breakdown := similarity.Composite(normalized, candidate.NormalizedName, opts.SimilarityWeights)
		exact := 0.0
		if normalized == candidate.NormalizedName {
			exact = 1.0
		}

		graphContext := o.graphContextScore(ctx, input.Name, candidate)

		if best == nil || breakdown.Composite > bestBreakdown.Composite {
			best = candidate
			bestBreakdown = breakdown
			bestExact = exact
			bestGraphContext = graphContext
		}

		if err := o.recordDecision(ctx, input.CorrelationID, candidate.ID, input.Type, breakdown, exact, nil, graphContext, opts, outcomeFor(breakdown.Composite, opts)); err != nil {
			o.logger.Warn("failed to persist match decision record", "error", err)
		}
	}

	if best == nil {
		return o.createNewEntity(ctx, normalized, input)
	}

	finalScore := bestBreakdown.Composite
	var llmScore *float64
	outcome := outcomeFor(finalScore, opts)

	if opts.UseLLM && o.llmProvider.Available() && finalScore >= opts.ReviewThreshold && finalScore < opts.SynonymThreshold {
		known, _ := o.synonyms.ListByEntity(ctx, best.ID)
		values := make([]string, 0, len(known)+1)
		values = append(values, best.CanonicalName)
		for _, s := range known {
			values = append(values, s.Value)
		}
		enriched, err := o.llmProvider.Enrich(ctx, llm.EnrichmentRequest{
			RawName:       input.Name,
			CandidateName: best.CanonicalName,
			EntityType:    input.Type,
			KnownSynonyms: values,
		})
		if err != nil {
			o.logger.Warn("llm enrichment failed, falling back to composite-only decision", "error", err)
		} else {
			llmScore = &enriched.Confidence
			if enriched.Match && enriched.Confidence >= opts.LLMConfidenceThreshold {
				outcome = models.OutcomeSynonym
			} else {
				outcome = models.OutcomeReview
			}
		}
	}

	if err := o.recordDecision(ctx, input.CorrelationID, best.ID, input.Type, bestBreakdown, bestExact, llmScore, bestGraphContext, opts, outcome); err != nil {
		o.logger.Warn("failed to persist final match decision record", "error", err)
	}

	switch outcome {
	case models.OutcomeAutoMerge:
		if !opts.AutoMergeEnabled {
			return o.createSynonym(ctx, normalized, input, best, finalScore)
		}
		return o.autoMerge(ctx, normalized, input, best, finalScore)
	case models.OutcomeSynonym:
		return o.createSynonym(ctx, normalized, input, best, finalScore)
	case models.OutcomeReview:
		return o.submitReview(ctx, input, best, finalScore)
	default:
		return o.createNewEntity(ctx, normalized, input)
	}
}

// outcomeFor maps a composite score to the per-candidate outcome the
// configured thresholds imply, before any LLM adjudication.
func outcomeFor(score float64, opts Options) models.MatchOutcome {
	switch {
	case score >= opts.AutoMergeThreshold:
		return models.OutcomeAutoMerge
	case score >= opts.SynonymThreshold:
		return models.OutcomeSynonym
	case score >= opts.ReviewThreshold:
		return models.OutcomeReview
	default:
		return models.OutcomeNoMatch
	}
}

func (o *Orchestrator) recordDecision(
	ctx context.Context,
	correlationID, candidateID string,
	t models.EntityType,
	breakdown similarity.Breakdown,
	exact float64,
	llmScore *float64,
	graphContext *float64,
	opts Options,
	outcome models.MatchOutcome,
) error {
	return o.decisions.Create(ctx, &models.MatchDecisionRecord{
		ID:                uuid.NewString(),
		InputEntityTempID: correlationID,
		CandidateEntityID: candidateID,
		Type:              t,
		Scores: models.ComponentScores{
			Exact:        exact,
			Levenshtein:  breakdown.Levenshtein,
			JaroWinkler:  breakdown.JaroWinkler,
			Jaccard:      breakdown.Jaccard,
			LLM:          llmScore,
			GraphContext: graphContext,
		},
		FinalScore: breakdown.Composite,
		Thresholds: models.Thresholds{
			AutoMerge: opts.AutoMergeThreshold,
			Synonym:   opts.SynonymThreshold,
			Review:    opts.ReviewThreshold,
		},
		Outcome:     outcome,
		Evaluator:   "composite_similarity",
		EvaluatedAt: time.Now().UTC(),
	})
}

// autoMerge creates a transient entity for the input mention, then folds
// it into the matched entity through the merge saga so the merge carries
// full synonym/duplicate/ledger/audit provenance — the distinction from
// createSynonym is deliberate: AUTO_MERGE is the high-confidence band and
// earns the heavier, fully-audited treatment.
func (o *Orchestrator) autoMerge(ctx context.Context, normalized string, input Input, target *models.Entity, confidence float64) (*Result, error) {
	now := time.Now().UTC()
	transient := &models.Entity{
		ID:              uuid.NewString(),
		CanonicalName:   input.Name,
		NormalizedName:  normalized,
		Type:            input.Type,
		ConfidenceScore: confidence,
		Status:          models.EntityStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.entities.Create(ctx, transient); err != nil {
		return nil, err
	}

	mergeResult, err := o.mergeEngine.Merge(ctx, transient.ID, target.ID,
		merge.MatchResult{Confidence: confidence, Reasoning: "composite similarity auto-merge"},
		input.SourceSystem, merge.StrategyKeepTarget)
	if err != nil {
		return nil, err
	}

	o.cacheSet(normalized, input.Type, target.ID)
	return &Result{
		Ref:           entityref.NewWithResolver(target.ID, string(target.Type), o.resolveCanonical),
		Entity:        target,
		Decision:      models.DecisionAutoMerge,
		Confidence:    confidence,
		Reasoning:     "composite similarity auto-merge",
		WasMerged:     mergeResult.Success,
		InputName:     input.Name,
		MatchedName:   target.CanonicalName,
		CorrelationID: input.CorrelationID,
	}, nil
}

// createSynonym adds the input's canonical name as a synonym of target
// without creating or merging any entity.
func (o *Orchestrator) createSynonym(ctx context.Context, normalized string, input Input, target *models.Entity, confidence float64) (*Result, error) {
	existing, err := o.synonyms.ListByEntity(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	created := false
	if !hasSynonymValue(existing, input.Name) {
		now := time.Now().UTC()
		syn := &models.Synonym{
			ID:              uuid.NewString(),
			Value:           input.Name,
			NormalizedValue: normalized,
			Source:          models.SynonymSourceSystem,
			Confidence:      confidence,
			CreatedAt:       now,
			LastConfirmedAt: now,
			SupportCount:    1,
			EntityID:        target.ID,
		}
		if err := o.synonyms.Create(ctx, syn); err != nil {
			return nil, err
		}
		created = true
		if err := o.audit.Append(ctx, &models.AuditEntry{
			ID:        uuid.NewString(),
			Action:    models.ActionSynonymCreated,
			EntityID:  target.ID,
			ActorID:   input.SourceSystem,
			Details:   map[string]interface{}{"value": input.Name, "confidence": confidence},
			Timestamp: now,
		}); err != nil {
			o.logger.Warn("failed to append synonym-created audit entry", "error", err)
		}
	}

	o.cacheSet(normalized, input.Type, target.ID)
	return &Result{
		Ref:                  entityref.NewWithResolver(target.ID, string(target.Type), o.resolveCanonical),
		Entity:               target,
		Decision:             models.DecisionSynonymOnly,
		Confidence:           confidence,
		WasNewSynonymCreated: created,
		InputName:            input.Name,
		MatchedName:          target.CanonicalName,
		CorrelationID:        input.CorrelationID,
	}, nil
}

// submitReview routes an ambiguous candidate to the review queue, falling
// back to an audit-only record when no queue is configured.
func (o *Orchestrator) submitReview(ctx context.Context, input Input, candidate *models.Entity, confidence float64) (*Result, error) {
	item := &models.ReviewItem{
		ID:                uuid.NewString(),
		SourceEntityID:    input.CorrelationID,
		CandidateEntityID: candidate.ID,
		EntityType:        input.Type,
		SimilarityScore:   confidence,
		Status:            models.ReviewStatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	if o.reviewQueue.Configured() {
		if err := o.reviewQueue.Submit(ctx, item); err != nil {
			return nil, err
		}
	} else {
		if err := o.audit.Append(ctx, &models.AuditEntry{
			ID:       uuid.NewString(),
			Action:   models.ActionManualReviewRequested,
			EntityID: candidate.ID,
			ActorID:  input.SourceSystem,
			Details: map[string]interface{}{
				"inputName":  input.Name,
				"confidence": confidence,
			},
			Timestamp: time.Now().UTC(),
		}); err != nil {
			o.logger.Warn("failed to append review-requested audit entry", "error", err)
		}
	}

	return &Result{
		Decision:      models.DecisionReview,
		Confidence:    confidence,
		InputName:     input.Name,
		MatchedName:   candidate.CanonicalName,
		CorrelationID: input.CorrelationID,
	}, nil
}

// createNewEntity is reached when no exact, synonym, or sufficiently
// similar candidate exists: input.Name becomes a brand-new ACTIVE entity.
func (o *Orchestrator) createNewEntity(ctx context.Context, normalized string, input Input) (*Result, error) {
	now := time.Now().UTC()
	entity := &models.Entity{
		ID:              uuid.NewString(),
		CanonicalName:   input.Name,
		NormalizedName:  normalized,
		Type:            input.Type,
		ConfidenceScore: 1.0,
		Status:          models.EntityStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.entities.Create(ctx, entity); err != nil {
		return nil, err
	}

	keys := o.blockingStrategy.Keys(normalized)
	if err := o.entities.AddBlockingKeys(ctx, entity.ID, keys); err != nil {
		o.logger.Warn("failed to persist blocking keys", "entity_id", entity.ID, "error", err)
	}
	o.blockingIndex.Add(entity.ID, keys)

	if err := o.audit.Append(ctx, &models.AuditEntry{
		ID:        uuid.NewString(),
		Action:    models.ActionEntityCreated,
		EntityID:  entity.ID,
		ActorID:   input.SourceSystem,
		Details:   map[string]interface{}{"canonicalName": input.Name},
		Timestamp: now,
	}); err != nil {
		o.logger.Warn("failed to append entity-created audit entry", "error", err)
	}

	o.cacheSet(normalized, input.Type, entity.ID)
	return &Result{
		Ref:           entityref.NewWithResolver(entity.ID, string(entity.Type), o.resolveCanonical),
		Entity:        entity,
		Decision:      models.DecisionNoMatch,
		IsNewEntity:   true,
		InputName:     input.Name,
		MatchedName:   entity.CanonicalName,
		CorrelationID: input.CorrelationID,
	}, nil
}

func (o *Orchestrator) cacheSet(normalized string, t models.EntityType, entityID string) {
	if o.cache != nil {
		o.cache.Set(normalized, t, entityID)
	}
}

// resolveCanonical is the entityref.Resolver backing every Ref this
// orchestrator hands out: a thin wrapper over EntityRepository.CanonicalOf.
func (o *Orchestrator) resolveCanonical(ctx context.Context, originalID string) (string, error) {
	return o.entities.CanonicalOf(ctx, originalID)
}

// graphContextScore computes the optional graphContext component: keyword
// overlap between the raw input name and a candidate's known synonym
// values. A candidate lookup failure degrades to a nil score rather than
// failing the whole match — this is an enrichment signal recorded
// alongside the composite score, not one that gates it.
func (o *Orchestrator) graphContextScore(ctx context.Context, rawName string, candidate *models.Entity) *float64 {
	known, err := o.synonyms.ListByEntity(ctx, candidate.ID)
	if err != nil {
		o.logger.Warn("failed to load synonyms for graph context score", "entity_id", candidate.ID, "error", err)
		return nil
	}

	values := make([]string, 0, len(known)+1)
	values = append(values, candidate.CanonicalName)
	for _, s := range known {
		values = append(values, s.Value)
	}

	score := o.contextScorer.Score(rawName, values)
	return &score
}

func hasSynonymValue(synonyms []*models.Synonym, value string) bool {
	for _, s := range synonyms {
		if strings.EqualFold(s.Value, value) {
			return true
		}
	}
	return false
}
