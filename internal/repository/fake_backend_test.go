package repository

import (
	"context"
	"strings"
)

// fakeBackend is a minimal in-memory graph.Backend stand-in: it records
// every Execute call and serves canned rows for Query, without attempting
// real Cypher semantics. It lets repository tests assert on the shape of
// the generated query/params and on row-to-model parsing, independent of a
// live Neo4j instance.
type fakeBackend struct {
	queryRows map[string][]map[string]any // cypher substring -> rows to return
	executed  []fakeCall
	queried   []fakeCall
	connected bool
}

type fakeCall struct {
	Cypher string
	Params map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		queryRows: make(map[string][]map[string]any),
		connected: true,
	}
}

func (f *fakeBackend) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.queried = append(f.queried, fakeCall{Cypher: cypher, Params: params})
	for substr, rows := range f.queryRows {
		if substr == "" || strings.Contains(cypher, substr) {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) Execute(ctx context.Context, cypher string, params map[string]any) error {
	f.executed = append(f.executed, fakeCall{Cypher: cypher, Params: params})
	return nil
}

func (f *fakeBackend) CreateIndexes(ctx context.Context) error { return nil }
func (f *fakeBackend) IsConnected(ctx context.Context) bool    { return f.connected }
func (f *fakeBackend) Close(ctx context.Context) error         { return nil }
