package blocking

import "sync"

// Index is a concurrent key -> entity-id-set mapping. It mirrors the
// BlockingKey/HAS_BLOCKING_KEY structure persisted in the graph store, kept
// in-process so fuzzy candidate lookup avoids a query per key family.
//
// Grounded on the teacher's label-keyed grouping maps (group entities by a
// shared key before acting on each group), generalized here to a
// dedicated concurrent structure rather than a one-shot batch parameter.
type Index struct {
	mu   sync.RWMutex
	byKey map[string]map[string]struct{} // key -> set of entity IDs
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{byKey: make(map[string]map[string]struct{})}
}

// Add registers entityID under every key it produces.
func (idx *Index) Add(entityID string, keys []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, k := range keys {
		set, ok := idx.byKey[k]
		if !ok {
			set = make(map[string]struct{})
			idx.byKey[k] = set
		}
		set[entityID] = struct{}{}
	}
}

// Remove drops entityID from every key it was registered under. Used when
// an entity transitions to MERGED so it stops surfacing as a fuzzy
// candidate for future resolutions.
func (idx *Index) Remove(entityID string, keys []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, k := range keys {
		set, ok := idx.byKey[k]
		if !ok {
			continue
		}
		delete(set, entityID)
		if len(set) == 0 {
			delete(idx.byKey, k)
		}
	}
}

// Candidates returns the union of entity IDs registered under any of keys.
// An empty result signals the caller should fall back to a full active
// scan (a bounded event that must be logged by the caller).
func (idx *Index) Candidates(keys []string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, k := range keys {
		for id := range idx.byKey[k] {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}
