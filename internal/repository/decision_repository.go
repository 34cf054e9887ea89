package repository

import (
	"context"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/graph"
	"github.com/entitygraph/resolver/internal/models"
)

// DecisionRepository persists MatchDecisionRecord entries: one per
// candidate considered during a fuzzy scan, correlated by
// InputEntityTempID.
type DecisionRepository struct {
	backend graph.Backend
}

// NewDecisionRepository wraps a graph-store collaborator.
func NewDecisionRepository(backend graph.Backend) *DecisionRepository {
	return &DecisionRepository{backend: backend}
}

// Create records a single candidate evaluation.
func (r *DecisionRepository) Create(ctx context.Context, d *models.MatchDecisionRecord) error {
	props := map[string]any{
		"id":                d.ID,
		"inputEntityTempId": d.InputEntityTempID,
		"candidateEntityId": d.CandidateEntityID,
		"type":              string(d.Type),
		"exactScore":        d.Scores.Exact,
		"levenshteinScore":  d.Scores.Levenshtein,
		"jaroWinklerScore":  d.Scores.JaroWinkler,
		"jaccardScore":      d.Scores.Jaccard,
		"finalScore":        d.FinalScore,
		"autoMergeThreshold": d.Thresholds.AutoMerge,
		"synonymThreshold":   d.Thresholds.Synonym,
		"reviewThreshold":    d.Thresholds.Review,
		"outcome":           string(d.Outcome),
		"evaluator":         d.Evaluator,
		"evaluatedAt":       d.EvaluatedAt,
	}
	if d.Scores.LLM != nil {
		props["llmScore"] = *d.Scores.LLM
	}
	if d.Scores.GraphContext != nil {
		props["graphContextScore"] = *d.Scores.GraphContext
	}

	builder := graph.NewCypherBuilder()
	cypher, err := builder.BuildMergeNode("MatchDecisionRecord", "id", d.ID, props)
	if err != nil {
		return errors.InternalErrorf("failed to build match decision query: %v", err)
	}
	if err := r.backend.Execute(ctx, cypher, builder.Params()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to create match decision record")
	}
	return nil
}

// ListByInputTempID returns every candidate evaluation recorded for a
// single in-flight resolution, in evaluation order.
func (r *DecisionRepository) ListByInputTempID(ctx context.Context, inputEntityTempID string) ([]*models.MatchDecisionRecord, error) {
	rows, err := r.backend.Query(ctx,
		`MATCH (d:MatchDecisionRecord {inputEntityTempId: $inputEntityTempId})
		 RETURN d.id as id, d.inputEntityTempId as inputEntityTempId, d.candidateEntityId as candidateEntityId,
		 d.type as type, d.exactScore as exactScore, d.levenshteinScore as levenshteinScore,
		 d.jaroWinklerScore as jaroWinklerScore, d.jaccardScore as jaccardScore, d.llmScore as llmScore,
		 d.graphContextScore as graphContextScore, d.finalScore as finalScore,
		 d.autoMergeThreshold as autoMergeThreshold, d.synonymThreshold as synonymThreshold,
		 d.reviewThreshold as reviewThreshold, d.outcome as outcome, d.evaluator as evaluator,
		 d.evaluatedAt as evaluatedAt
		 ORDER BY d.evaluatedAt ASC`,
		map[string]any{"inputEntityTempId": inputEntityTempID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to list match decision records")
	}

	records := make([]*models.MatchDecisionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToDecision(row))
	}
	return records, nil
}

func rowToDecision(row map[string]any) *models.MatchDecisionRecord {
	d := &models.MatchDecisionRecord{}
	d.ID, _ = row["id"].(string)
	d.InputEntityTempID, _ = row["inputEntityTempId"].(string)
	d.CandidateEntityID, _ = row["candidateEntityId"].(string)
	typeStr, _ := row["type"].(string)
	d.Type = models.EntityType(typeStr)

	d.Scores = models.ComponentScores{
		Exact:       toFloat64(row["exactScore"]),
		Levenshtein: toFloat64(row["levenshteinScore"]),
		JaroWinkler: toFloat64(row["jaroWinklerScore"]),
		Jaccard:     toFloat64(row["jaccardScore"]),
	}
	if v, ok := row["llmScore"]; ok && v != nil {
		f := toFloat64(v)
		d.Scores.LLM = &f
	}
	if v, ok := row["graphContextScore"]; ok && v != nil {
		f := toFloat64(v)
		d.Scores.GraphContext = &f
	}

	d.FinalScore = toFloat64(row["finalScore"])
	d.Thresholds = models.Thresholds{
		AutoMerge: toFloat64(row["autoMergeThreshold"]),
		Synonym:   toFloat64(row["synonymThreshold"]),
		Review:    toFloat64(row["reviewThreshold"]),
	}
	outcomeStr, _ := row["outcome"].(string)
	d.Outcome = models.MatchOutcome(outcomeStr)
	d.Evaluator, _ = row["evaluator"].(string)
	d.EvaluatedAt = toTime(row["evaluatedAt"])
	return d
}
