package graph

import "context"

// Backend is the opaque, Cypher-executing collaborator every repository is
// built on. The core never assumes a specific store beyond this surface.
type Backend interface {
	// Query runs a read statement and returns one map per result row.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Execute runs a write statement, discarding any returned rows.
	Execute(ctx context.Context, cypher string, params map[string]any) error

	// CreateIndexes creates every index required by the schema, idempotently.
	CreateIndexes(ctx context.Context) error

	// IsConnected reports whether the backend can currently reach the store.
	IsConnected(ctx context.Context) bool

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}
