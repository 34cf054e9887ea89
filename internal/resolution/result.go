package resolution

import (
	"github.com/entitygraph/resolver/internal/entityref"
	"github.com/entitygraph/resolver/internal/models"
)

// Result is the outcome of a single Resolve call.
type Result struct {
	Ref       *entityref.Ref
	Entity    *models.Entity
	Synonyms  []*models.Synonym
	Decision  models.DecisionKind
	Confidence float64
	Reasoning string

	IsNewEntity           bool
	WasMerged             bool
	WasMatchedViaSynonym  bool
	WasNewSynonymCreated  bool
	InputName             string
	MatchedName           string

	CorrelationID string
}
