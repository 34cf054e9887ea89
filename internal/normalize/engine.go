// Package normalize turns a raw entity mention into a canonical string used
// as the join key for exact and synonym matching.
package normalize

import (
	"sort"
	"strings"
	"sync"

	"github.com/entitygraph/resolver/internal/models"
)

// Engine applies a priority-ordered, type-scoped rule set, then collapses
// whitespace and lowercases. Normalize is deterministic and idempotent:
// Normalize(Normalize(x, t), t) == Normalize(x, t).
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine constructs an Engine seeded with DefaultRules.
func NewEngine() *Engine {
	e := &Engine{}
	e.SetRules(DefaultRules())
	return e
}

// SetRules replaces the active rule set, re-sorting by descending priority
// while preserving definition order within a priority (a stable sort).
func (e *Engine) SetRules(rules []Rule) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = sorted
}

// Normalize collapses whitespace, applies every applicable rule in priority
// order (repeating the pass while it keeps shortening the string, so
// suffixes stacked out of rule order such as "Foo Inc Co" are all
// stripped), then collapses whitespace again and lowercases.
// Unknown/unscoped types only get the whitespace/case pass.
func (e *Engine) Normalize(raw string, t models.EntityType) string {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	s := strings.Join(strings.Fields(raw), " ")
	for {
		prev := s
		for _, rule := range rules {
			if !rule.appliesTo(t) {
				continue
			}
			s = rule.Pattern.ReplaceAllString(s, rule.Replacement)
		}
		if len(s) >= len(prev) {
			break
		}
	}

	return collapseAndLower(s)
}

func collapseAndLower(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, " "))
}
