// Package models holds the plain data records persisted to the graph store.
// Entities and synonyms are owned by the graph; these structs are read-only
// snapshots handed back to callers, never mutated in place after a query.
package models

import "time"

// EntityType is the coarse classification of a resolved entity.
type EntityType string

const (
	EntityTypeCompany  EntityType = "COMPANY"
	EntityTypePerson   EntityType = "PERSON"
	EntityTypeProduct  EntityType = "PRODUCT"
	EntityTypeLocation EntityType = "LOCATION"
)

// Validate reports whether t is one of the known entity types.
func (t EntityType) Validate() bool {
	switch t {
	case EntityTypeCompany, EntityTypePerson, EntityTypeProduct, EntityTypeLocation:
		return true
	default:
		return false
	}
}

// EntityStatus tracks the ACTIVE -> MERGED lifecycle. The transition is
// one-way: a MERGED entity never returns to ACTIVE, except when a failed
// merge saga's compensation undoes its own transition
// (EntityRepository.RestoreToActive).
type EntityStatus string

const (
	EntityStatusActive EntityStatus = "ACTIVE"
	EntityStatusMerged EntityStatus = "MERGED"
)

// Entity is the canonical node: id is immutable once created, normalizedName
// is fixed at creation time from canonicalName via the normalization engine.
type Entity struct {
	ID              string       `json:"id"`
	CanonicalName   string       `json:"canonicalName"`
	NormalizedName  string       `json:"normalizedName"`
	Type            EntityType   `json:"type"`
	ConfidenceScore float64      `json:"confidenceScore"`
	Status          EntityStatus `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// SynonymSource records who introduced a synonym.
type SynonymSource string

const (
	SynonymSourceSystem SynonymSource = "SYSTEM"
	SynonymSourceHuman  SynonymSource = "HUMAN"
	SynonymSourceLLM    SynonymSource = "LLM"
)

// Synonym is attached to exactly one ACTIVE entity via SYNONYM_OF.
type Synonym struct {
	ID              string        `json:"id"`
	Value           string        `json:"value"`
	NormalizedValue string        `json:"normalizedValue"`
	Source          SynonymSource `json:"source"`
	Confidence      float64       `json:"confidence"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastConfirmedAt time.Time     `json:"lastConfirmedAt"`
	SupportCount    int           `json:"supportCount"`
	EntityID        string        `json:"entityId"`
}

// DuplicateEntity is an audit record of a source-side name that merged into
// a canonical entity.
type DuplicateEntity struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"originalName"`
	NormalizedName string    `json:"normalizedName"`
	SourceSystem   string    `json:"sourceSystem"`
	TargetEntityID string    `json:"targetEntityId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DecisionKind mirrors a merge trigger's decision outcome, recorded on the
// ledger entry for provenance.
type DecisionKind string

const (
	DecisionAutoMerge   DecisionKind = "AUTO_MERGE"
	DecisionSynonymOnly DecisionKind = "SYNONYM_ONLY"
	DecisionReview      DecisionKind = "REVIEW"
	DecisionNoMatch     DecisionKind = "NO_MATCH"
)

// Validate reports whether d is a known decision kind.
func (d DecisionKind) Validate() bool {
	switch d {
	case DecisionAutoMerge, DecisionSynonymOnly, DecisionReview, DecisionNoMatch:
		return true
	default:
		return false
	}
}

// MergeRecord is an append-only ledger entry: one per completed merge.
type MergeRecord struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId"`
	TargetID     string       `json:"targetId"`
	SourceName   string       `json:"sourceName"`
	TargetName   string       `json:"targetName"`
	Confidence   float64      `json:"confidence"`
	DecisionKind DecisionKind `json:"decisionKind"`
	TriggeredBy  string       `json:"triggeredBy"`
	Reasoning    string       `json:"reasoning"`
	Timestamp    time.Time    `json:"timestamp"`
}

// MatchOutcome is the per-candidate evaluation result recorded during a
// fuzzy scan.
type MatchOutcome string

const (
	OutcomeAutoMerge MatchOutcome = "AUTO_MERGE"
	OutcomeSynonym   MatchOutcome = "SYNONYM"
	OutcomeReview    MatchOutcome = "REVIEW"
	OutcomeNoMatch   MatchOutcome = "NO_MATCH"
)

// ComponentScores holds the individual similarity components behind a
// composite score, plus optional LLM/graph-context contributions.
type ComponentScores struct {
	Exact        float64  `json:"exact"`
	Levenshtein  float64  `json:"levenshtein"`
	JaroWinkler  float64  `json:"jaroWinkler"`
	Jaccard      float64  `json:"jaccard"`
	LLM          *float64 `json:"llm,omitempty"`
	GraphContext *float64 `json:"graphContext,omitempty"`
}

// Thresholds captures the decision thresholds in effect when a candidate
// was evaluated, so a MatchDecisionRecord is self-describing.
type Thresholds struct {
	AutoMerge float64 `json:"autoMerge"`
	Synonym   float64 `json:"synonym"`
	Review    float64 `json:"review"`
}

// MatchDecisionRecord is persisted for every candidate considered during a
// fuzzy scan, correlated by InputEntityTempID.
type MatchDecisionRecord struct {
	ID                string          `json:"id"`
	InputEntityTempID string          `json:"inputEntityTempId"`
	CandidateEntityID string          `json:"candidateEntityId"`
	Type              EntityType      `json:"type"`
	Scores            ComponentScores `json:"scores"`
	FinalScore        float64         `json:"finalScore"`
	Thresholds        Thresholds      `json:"thresholds"`
	Outcome           MatchOutcome    `json:"outcome"`
	Evaluator         string          `json:"evaluator"`
	EvaluatedAt       time.Time       `json:"evaluatedAt"`
}

// LibraryRelationship is a library-managed edge: must be created through the
// library so a merge can migrate it. RelationshipType is restricted to
// [A-Za-z0-9_]+.
type LibraryRelationship struct {
	ID               string                 `json:"id"`
	SourceEntityID   string                 `json:"sourceEntityId"`
	TargetEntityID   string                 `json:"targetEntityId"`
	RelationshipType string                 `json:"relationshipType"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	CreatedBy        string                 `json:"createdBy"`
}

// AuditAction enumerates the side effects that must be recorded in the
// append-only audit trail.
type AuditAction string

const (
	ActionEntityCreated           AuditAction = "ENTITY_CREATED"
	ActionEntityUpdated           AuditAction = "ENTITY_UPDATED"
	ActionEntityMerged            AuditAction = "ENTITY_MERGED"
	ActionSynonymCreated          AuditAction = "SYNONYM_CREATED"
	ActionDuplicateCreated        AuditAction = "DUPLICATE_CREATED"
	ActionRelationshipsMigrated   AuditAction = "RELATIONSHIPS_MIGRATED"
	ActionRelationshipCreated     AuditAction = "RELATIONSHIP_CREATED"
	ActionLLMEnrichmentRequested  AuditAction = "LLM_ENRICHMENT_REQUESTED"
	ActionLLMEnrichmentCompleted  AuditAction = "LLM_ENRICHMENT_COMPLETED"
	ActionManualReviewRequested   AuditAction = "MANUAL_REVIEW_REQUESTED"
)

// AuditEntry is an append-only provenance record.
type AuditEntry struct {
	ID        string                 `json:"id"`
	Action    AuditAction            `json:"action"`
	EntityID  string                 `json:"entityId"`
	ActorID   string                 `json:"actorId"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ReviewStatus is the lifecycle of a human-adjudication item.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// ReviewItem is submitted for human adjudication of a REVIEW outcome.
type ReviewItem struct {
	ID                string       `json:"id"`
	SourceEntityID    string       `json:"sourceEntityId"`
	CandidateEntityID string       `json:"candidateEntityId"`
	EntityType        EntityType   `json:"entityType"`
	SimilarityScore   float64      `json:"similarityScore"`
	Status            ReviewStatus `json:"status"`
	CreatedAt         time.Time    `json:"createdAt"`
	ResolvedAt        *time.Time   `json:"resolvedAt,omitempty"`
}
