package normalize

import (
	"regexp"

	"github.com/entitygraph/resolver/internal/models"
)

// Rule is a priority-ordered, type-scoped rewrite rule. Rules with higher
// Priority apply first; within the same priority, definition order (the
// order they appear in the slice) is preserved.
type Rule struct {
	Pattern         *regexp.Regexp
	Replacement     string
	ApplicableTypes []models.EntityType // empty means "all types"
	Priority        int
}

// appliesTo reports whether the rule is scoped to t (or unscoped).
func (r Rule) appliesTo(t models.EntityType) bool {
	if len(r.ApplicableTypes) == 0 {
		return true
	}
	for _, at := range r.ApplicableTypes {
		if at == t {
			return true
		}
	}
	return false
}

// orgSuffix builds a whole-token, case-insensitive suffix-stripping rule for
// a single organizational designator (Inc, Corp, LLC, ...).
func orgSuffix(word string, priority int) Rule {
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\.?\s*$`)
	return Rule{
		Pattern:         pattern,
		Replacement:     "",
		ApplicableTypes: []models.EntityType{models.EntityTypeCompany},
		Priority:        priority,
	}
}

// DefaultRules returns the built-in rule set: strip common organizational
// suffixes as whole tokens (case-insensitively), applied to COMPANY only.
// Data, not code, so a tenant can swap it wholesale via
// Engine.SetRules.
func DefaultRules() []Rule {
	suffixes := []string{
		"Incorporated", "Inc", "Corporation", "Corp", "Limited", "Ltd",
		"LLC", "PLC", "SA", "Co",
	}
	rules := make([]Rule, 0, len(suffixes))
	// All suffix rules share priority 100; definition order below is the
	// tie-break order. Each pattern is anchored at the end of the string,
	// so "Inc" cannot match inside "Incorporated" whatever the order.
	for _, s := range suffixes {
		rules = append(rules, orgSuffix(s, 100))
	}
	return rules
}
