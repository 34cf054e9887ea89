package entityref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_Static(t *testing.T) {
	r := New("e1", "COMPANY")
	id, err := r.CanonicalID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
	assert.Equal(t, "e1", r.OriginalID())
}

func TestRef_ResolverFollowsChain(t *testing.T) {
	// Simulates e1 -> MERGED_INTO -> e2 -> MERGED_INTO -> e3 (ACTIVE)
	chain := map[string]string{"e1": "e2", "e2": "e3"}
	resolve := func(ctx context.Context, id string) (string, error) {
		for {
			next, merged := chain[id]
			if !merged {
				return id, nil
			}
			id = next
		}
	}

	r := NewWithResolver("e1", "COMPANY", resolve)
	id, err := r.CanonicalID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e3", id)
	assert.Equal(t, "e1", r.OriginalID(), "original id is immutable")
}

func TestRef_ResolverReReadsOnEachCall(t *testing.T) {
	target := "e2"
	resolve := func(ctx context.Context, id string) (string, error) {
		return target, nil
	}

	r := NewWithResolver("e1", "COMPANY", resolve)
	first, err := r.CanonicalID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e2", first)

	target = "e3" // a merge happened between calls
	second, err := r.CanonicalID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e3", second, "must not cache canonical id across calls")
}

func TestEqual(t *testing.T) {
	resolveToE3 := func(ctx context.Context, id string) (string, error) { return "e3", nil }

	a := NewWithResolver("e1", "COMPANY", resolveToE3)
	b := NewWithResolver("e2", "COMPANY", resolveToE3)
	eq, err := Equal(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, eq)

	c := New("e4", "PERSON")
	eq, err = Equal(context.Background(), a, c)
	require.NoError(t, err)
	assert.False(t, eq, "different types are never equal")
}
