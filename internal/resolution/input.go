package resolution

import "github.com/entitygraph/resolver/internal/models"

// Input is a single raw mention to resolve against the entity graph.
type Input struct {
	Name          string
	Type          models.EntityType
	SourceSystem  string
	CorrelationID string
}
