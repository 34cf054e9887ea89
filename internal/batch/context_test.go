package batch

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/cache"
	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
	"github.com/entitygraph/resolver/internal/resolution"
)

// fakeGraphBackend is a minimal graph.Backend double. It exploits the fact
// that graph.CypherBuilder.BuildMergeNode/BuildMergeEdge always emit one of
// two structurally-uniform query shapes, so a single pair of regexes can
// generically store every node/edge this package's collaborators create,
// without per-repository Cypher parsing.
type fakeGraphBackend struct {
	mu    sync.Mutex
	nodes map[string]map[string]map[string]any
	edges []fakeEdge
}

type fakeEdge struct {
	fromLabel, fromID, edgeType, toLabel, toID string
}

var (
	mergeNodeRe = regexp.MustCompile(`MERGE \(n:(\w+) \{(\w+): \$(\w+)\}\) SET (.+) RETURN id\(n\) as id`)
	setClauseRe = regexp.MustCompile(`n\.(\w+) = \$(\w+)`)
	mergeEdgeRe = regexp.MustCompile(`MATCH \(from:(\w+) \{(\w+): \$(\w+)\}\) MATCH \(to:(\w+) \{(\w+): \$(\w+)\}\) MERGE \(from\)-\[r:(\w+)\]->\(to\)`)
)

func newFakeGraphBackend() *fakeGraphBackend {
	return &fakeGraphBackend{nodes: make(map[string]map[string]map[string]any)}
}

func (b *fakeGraphBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m := mergeNodeRe.FindStringSubmatch(cypher); m != nil {
		label, uniqueParam, setClause := m[1], m[3], m[4]
		key := fmt.Sprint(params[uniqueParam])
		if b.nodes[label] == nil {
			b.nodes[label] = make(map[string]map[string]any)
		}
		props := b.nodes[label][key]
		if props == nil {
			props = make(map[string]any)
		}
		for _, pm := range setClauseRe.FindAllStringSubmatch(setClause, -1) {
			props[pm[1]] = params[pm[2]]
		}
		b.nodes[label][key] = props
		return nil
	}

	if m := mergeEdgeRe.FindStringSubmatch(cypher); m != nil {
		fromLabel, toLabel, edgeType := m[1], m[4], m[7]
		fromID := fmt.Sprint(params[m[3]])
		toID := fmt.Sprint(params[m[6]])
		b.edges = append(b.edges, fakeEdge{fromLabel, fromID, edgeType, toLabel, toID})
		return nil
	}

	return nil
}

func (b *fakeGraphBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case contains(cypher, "MATCH (e:Entity {id: $id})") && contains(cypher, "OPTIONAL MATCH (e)-[:MERGED_INTO*0..]"):
		id := fmt.Sprint(params["id"])
		return []map[string]any{{"canonicalId": id}}, nil
	case contains(cypher, "normalizedName: $normalizedName, type: $type, status: $status"):
		return nil, nil
	case contains(cypher, "e:Entity") && contains(cypher, "type: $type, status: $status"):
		return nil, nil
	case contains(cypher, "(s:Synonym {normalizedValue: $normalizedValue})-[:SYNONYM_OF]->"):
		return nil, nil
	default:
		return nil, nil
	}
}

func contains(s, substr string) bool {
	return regexp.MustCompile(regexp.QuoteMeta(substr)).MatchString(s)
}

func (b *fakeGraphBackend) CreateIndexes(ctx context.Context) error { return nil }
func (b *fakeGraphBackend) IsConnected(ctx context.Context) bool    { return true }
func (b *fakeGraphBackend) Close(ctx context.Context) error         { return nil }

func newTestContext(backend *fakeGraphBackend, opts resolution.Options) *Context {
	orchestrator := resolution.NewOrchestrator(backend, cache.NewResolutionCache(0, nil), cache.NewLocalLock(), nil, nil)
	relationships := repository.NewRelationshipRepository(backend)
	return New(orchestrator, relationships, opts)
}

func TestBatchContext_ResolveDedupesCaseVariants(t *testing.T) {
	backend := newFakeGraphBackend()
	opts := resolution.DefaultOptions()
	bc := newTestContext(backend, opts)
	ctx := context.Background()

	names := []string{"Widget Pro", "WIDGET PRO", "widget pro"}
	var results []*resolution.Result
	for _, n := range names {
		r, err := bc.Resolve(ctx, resolution.Input{Name: n, Type: models.EntityTypeProduct, SourceSystem: "test"})
		require.NoError(t, err)
		results = append(results, r)
	}

	assert.Equal(t, results[0].Entity.ID, results[1].Entity.ID)
	assert.Equal(t, results[0].Entity.ID, results[2].Entity.ID)
	assert.Len(t, bc.resolved, 1)
}

func TestBatchContext_EnforcesMaxBatchSizeOnNewKeysOnly(t *testing.T) {
	backend := newFakeGraphBackend()
	opts := resolution.DefaultOptions()
	opts.MaxBatchSize = 1
	bc := newTestContext(backend, opts)
	ctx := context.Background()

	_, err := bc.Resolve(ctx, resolution.Input{Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test"})
	require.NoError(t, err)

	// repeat of the same key stays free even at the limit.
	_, err = bc.Resolve(ctx, resolution.Input{Name: "widget pro", Type: models.EntityTypeProduct, SourceSystem: "test"})
	require.NoError(t, err)

	_, err = bc.Resolve(ctx, resolution.Input{Name: "Globex Widget", Type: models.EntityTypeProduct, SourceSystem: "test"})
	assert.Error(t, err)
}

func TestBatchContext_CommitCreatesQueuedRelationship(t *testing.T) {
	backend := newFakeGraphBackend()
	opts := resolution.DefaultOptions()
	bc := newTestContext(backend, opts)
	ctx := context.Background()

	_, err := bc.Resolve(ctx, resolution.Input{Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test"})
	require.NoError(t, err)
	_, err = bc.Resolve(ctx, resolution.Input{Name: "Globex Widget", Type: models.EntityTypeProduct, SourceSystem: "test"})
	require.NoError(t, err)

	err = bc.AddRelationship("Widget Pro", models.EntityTypeProduct, "Globex Widget", models.EntityTypeProduct, "PARTNER", nil, "test")
	require.NoError(t, err)

	result, err := bc.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalEntitiesResolved)
	assert.Equal(t, 2, result.NewEntitiesCreated)
	assert.Equal(t, 1, result.RelationshipsCreated)
	assert.Empty(t, result.Errors)
}

func TestBatchContext_MethodsErrorAfterClose(t *testing.T) {
	backend := newFakeGraphBackend()
	bc := newTestContext(backend, resolution.DefaultOptions())
	ctx := context.Background()

	_, err := bc.Resolve(ctx, resolution.Input{Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test"})
	require.NoError(t, err)

	bc.Close()

	_, err = bc.Resolve(ctx, resolution.Input{Name: "Another Thing", Type: models.EntityTypeProduct, SourceSystem: "test"})
	assert.Error(t, err)

	err = bc.AddRelationship("Widget Pro", models.EntityTypeProduct, "Widget Pro", models.EntityTypeProduct, "PARTNER", nil, "test")
	assert.Error(t, err)

	_, err = bc.Commit(ctx)
	assert.Error(t, err)
}

func TestBatchContext_AddRelationshipRejectsUnresolvedMention(t *testing.T) {
	backend := newFakeGraphBackend()
	bc := newTestContext(backend, resolution.DefaultOptions())

	err := bc.AddRelationship("Never Resolved", models.EntityTypeProduct, "Also Never", models.EntityTypeProduct, "PARTNER", nil, "test")
	assert.Error(t, err)
}
