// Package entityref provides a lazy, merge-stable handle to an entity: a
// reference that keeps resolving to the live canonical entity even after
// the one it was first pointed at gets merged away.
package entityref

import "context"

// Resolver follows a (possibly stale) entity id to its current canonical
// id. Implementations must be side-effect-free and safe to call
// concurrently — typically a read-only Cypher traversal of MERGED_INTO.
type Resolver func(ctx context.Context, originalID string) (string, error)

// Ref is a handle to an entity that survives merges. A Ref constructed via
// New never changes identity; one constructed via NewWithResolver
// re-resolves to the live canonical id on every CanonicalID call, since a
// merge can happen between calls.
type Ref struct {
	originalID string
	entityType string
	resolve    Resolver
}

// New returns a static ref: CanonicalID always returns originalID.
func New(id, entityType string) *Ref {
	return &Ref{originalID: id, entityType: entityType}
}

// NewWithResolver returns a lazy ref backed by resolve.
func NewWithResolver(id, entityType string, resolve Resolver) *Ref {
	return &Ref{originalID: id, entityType: entityType, resolve: resolve}
}

// OriginalID is the id this ref was constructed with. Immutable.
func (r *Ref) OriginalID() string { return r.originalID }

// Type is the entity type this ref was constructed with.
func (r *Ref) Type() string { return r.entityType }

// CanonicalID returns the currently-live entity id. For a static ref this
// is always OriginalID. For a resolver-backed ref it re-runs the resolver
// each call — termination is guaranteed by the graph invariant that a
// MERGED entity has exactly one outgoing MERGED_INTO edge to an ACTIVE
// entity, so a resolver implemented as that traversal cannot loop.
func (r *Ref) CanonicalID(ctx context.Context) (string, error) {
	if r.resolve == nil {
		return r.originalID, nil
	}
	return r.resolve(ctx, r.originalID)
}

// Equal reports whether two refs name the same entity type and currently
// resolve to the same canonical id.
func Equal(ctx context.Context, a, b *Ref) (bool, error) {
	if a.entityType != b.entityType {
		return false, nil
	}
	aID, err := a.CanonicalID(ctx)
	if err != nil {
		return false, err
	}
	bID, err := b.CanonicalID(ctx)
	if err != nil {
		return false, err
	}
	return aID == bID, nil
}
