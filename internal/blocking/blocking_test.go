package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategyKeys(t *testing.T) {
	s := DefaultStrategy{}
	keys := s.Keys("acme holdings")
	assert.Contains(t, keys, "pfx:acm")
	assert.Contains(t, keys, "tok:acme holdings")

	short := s.Keys("ab")
	for _, k := range short {
		assert.NotContains(t, k, "pfx:")
	}
}

func TestIndexUnionAndFallback(t *testing.T) {
	idx := NewIndex()
	idx.Add("e1", []string{"pfx:acm", "tok:acme holdings"})
	idx.Add("e2", []string{"pfx:ibm"})

	got := idx.Candidates([]string{"pfx:acm"})
	assert.ElementsMatch(t, []string{"e1"}, got)

	empty := idx.Candidates([]string{"pfx:zzz"})
	assert.Empty(t, empty)
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	idx.Add("e1", []string{"pfx:acm"})
	idx.Remove("e1", []string{"pfx:acm"})
	assert.Empty(t, idx.Candidates([]string{"pfx:acm"}))
}
