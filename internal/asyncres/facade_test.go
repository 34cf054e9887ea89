package asyncres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/cache"
	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/resolution"
)

// fakeGraphBackend is the same generic node/edge store used throughout
// the resolution and batch test suites: graph.CypherBuilder always emits
// one of two structurally-uniform query shapes, so one pair of regexes
// backs every write this package's orchestrator issues.
type fakeGraphBackend struct {
	mu    sync.Mutex
	nodes map[string]map[string]map[string]any
}

var (
	mergeNodeRe = regexp.MustCompile(`MERGE \(n:(\w+) \{(\w+): \$(\w+)\}\) SET (.+) RETURN id\(n\) as id`)
	setClauseRe = regexp.MustCompile(`n\.(\w+) = \$(\w+)`)
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
	}
	return nil
}

func (b *fakeGraphBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if regexp.MustCompile(`OPTIONAL MATCH \(e\)-\[:MERGED_INTO\*0\.\.\]`).MatchString(cypher) {
		return []map[string]any{{"canonicalId": fmt.Sprint(params["id"])}}, nil
	}
	return nil, nil
}

func (b *fakeGraphBackend) CreateIndexes(ctx context.Context) error { return nil }
func (b *fakeGraphBackend) IsConnected(ctx context.Context) bool    { return true }
func (b *fakeGraphBackend) Close(ctx context.Context) error         { return nil }

func newTestFacade(backend *fakeGraphBackend) *Facade {
	orchestrator := resolution.NewOrchestrator(backend, cache.NewResolutionCache(0, nil), cache.NewLocalLock(), nil, nil)
	return NewFacade(orchestrator, resolution.DefaultOptions(), 2*time.Second)
}

func TestFacade_ResolveAsyncReturnsNewEntity(t *testing.T) {
	backend := newFakeGraphBackend()
	facade := newTestFacade(backend)

	future := facade.ResolveAsync(context.Background(), resolution.Input{
		Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test",
	})

	result, err := future.WaitTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, result.IsNewEntity)
}

func TestFacade_ResolveBatchAsyncRejectsNonPositiveConcurrency(t *testing.T) {
	backend := newFakeGraphBackend()
	facade := newTestFacade(backend)

	results, errs := facade.ResolveBatchAsync(context.Background(), []resolution.Input{
		{Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test"},
	}, 0)

	assert.Nil(t, results)
	require.Len(t, errs, 1)
}

func TestFacade_ResolveBatchAsyncBoundsConcurrencyAndReturnsAllResults(t *testing.T) {
	backend := newFakeGraphBackend()
	facade := newTestFacade(backend)

	requests := []resolution.Input{
		{Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test"},
		{Name: "Globex Widget", Type: models.EntityTypeProduct, SourceSystem: "test"},
		{Name: "Acme Gadget", Type: models.EntityTypeProduct, SourceSystem: "test"},
	}

	results, errs := facade.ResolveBatchAsync(context.Background(), requests, 2)
	assert.Empty(t, errs)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NotNil(t, r, "result %d should not be nil", i)
		assert.True(t, r.IsNewEntity)
	}
}

func TestFacade_CloseDrainsInFlightWork(t *testing.T) {
	backend := newFakeGraphBackend()
	facade := newTestFacade(backend)

	future := facade.ResolveAsync(context.Background(), resolution.Input{
		Name: "Widget Pro", Type: models.EntityTypeProduct, SourceSystem: "test",
	})

	err := facade.Close(context.Background())
	require.NoError(t, err)

	_, err = future.WaitTimeout(100 * time.Millisecond)
	require.NoError(t, err)

	future2 := facade.ResolveAsync(context.Background(), resolution.Input{
		Name: "Globex Widget", Type: models.EntityTypeProduct, SourceSystem: "test",
	})
	_, err = future2.WaitTimeout(100 * time.Millisecond)
	assert.Error(t, err)
}
