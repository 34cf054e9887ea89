package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jBackend implements Backend against a real Neo4j cluster using the
// modern neo4j.ExecuteQuery API (driver v5.8+).
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jBackend creates a Neo4j-backed Backend, failing fast if the store
// is unreachable.
func NewNeo4jBackend(ctx context.Context, uri, username, password, database string) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(username, password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 50
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jBackend{
		driver:   driver,
		database: database,
		logger:   slog.Default().With("component", "neo4j_backend"),
	}, nil
}

// HealthCheck verifies connectivity to the store, used by the pool-health
// monitor and by CheckPoolHealth.
func (n *Neo4jBackend) HealthCheck(ctx context.Context) error {
	if err := n.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// Query implements Backend: a parameterized read, routed to replicas.
func (n *Neo4jBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, n.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

// Execute implements Backend: a parameterized write, routed to the leader.
func (n *Neo4jBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, n.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}
	return nil
}

// requiredIndexes mirrors the index list in the external-interfaces schema:
// one entry per label/property combination that must exist before the
// resolution pipeline runs at scale.
var requiredIndexes = []string{
	"CREATE INDEX entity_id IF NOT EXISTS FOR (n:Entity) ON (n.id)",
	"CREATE INDEX entity_normalized_name IF NOT EXISTS FOR (n:Entity) ON (n.normalizedName)",
	"CREATE INDEX entity_type IF NOT EXISTS FOR (n:Entity) ON (n.type)",
	"CREATE INDEX entity_status IF NOT EXISTS FOR (n:Entity) ON (n.status)",
	"CREATE INDEX synonym_id IF NOT EXISTS FOR (n:Synonym) ON (n.id)",
	"CREATE INDEX synonym_normalized_value IF NOT EXISTS FOR (n:Synonym) ON (n.normalizedValue)",
	"CREATE INDEX blocking_key_value IF NOT EXISTS FOR (n:BlockingKey) ON (n.value)",
	"CREATE INDEX audit_entry_id IF NOT EXISTS FOR (n:AuditEntry) ON (n.id)",
	"CREATE INDEX audit_entry_entity_id IF NOT EXISTS FOR (n:AuditEntry) ON (n.entityId)",
	"CREATE INDEX audit_entry_action IF NOT EXISTS FOR (n:AuditEntry) ON (n.action)",
	"CREATE INDEX audit_entry_timestamp IF NOT EXISTS FOR (n:AuditEntry) ON (n.timestamp)",
	"CREATE INDEX review_item_id IF NOT EXISTS FOR (n:ReviewItem) ON (n.id)",
	"CREATE INDEX review_item_status IF NOT EXISTS FOR (n:ReviewItem) ON (n.status)",
	"CREATE INDEX review_item_entity_type IF NOT EXISTS FOR (n:ReviewItem) ON (n.entityType)",
	"CREATE INDEX match_decision_id IF NOT EXISTS FOR (n:MatchDecisionRecord) ON (n.id)",
	"CREATE INDEX match_decision_input_temp_id IF NOT EXISTS FOR (n:MatchDecisionRecord) ON (n.inputEntityTempId)",
	"CREATE INDEX match_decision_candidate_id IF NOT EXISTS FOR (n:MatchDecisionRecord) ON (n.candidateEntityId)",
}

// CreateIndexes implements Backend, batching every required index creation
// into a single write transaction.
func (n *Neo4jBackend) CreateIndexes(ctx context.Context) error {
	queries := make([]QueryWithParams, len(requiredIndexes))
	for i, stmt := range requiredIndexes {
		queries[i] = QueryWithParams{Query: stmt}
	}
	return n.ExecuteBatchWithParams(ctx, queries)
}

// IsConnected implements Backend.
func (n *Neo4jBackend) IsConnected(ctx context.Context) bool {
	return n.driver.VerifyConnectivity(ctx) == nil
}

// Close implements Backend.
func (n *Neo4jBackend) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// QueryWithParams represents a Cypher statement with its bound parameters,
// used for batched multi-statement transactions.
type QueryWithParams struct {
	Query  string
	Params map[string]any
}

// ExecuteBatchWithParams runs every query in queries inside one managed
// write transaction.
func (n *Neo4jBackend) ExecuteBatchWithParams(ctx context.Context, queries []QueryWithParams) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		for i, q := range queries {
			if _, err := tx.Run(ctx, q.Query, q.Params); err != nil {
				return nil, fmt.Errorf("batch statement %d failed: %w", i, err)
			}
		}
		return nil, nil
	})
	return err
}

