package normalize

import (
	"testing"

	"github.com/entitygraph/resolver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	e := NewEngine()
	inputs := []string{"Acme Corp", "ACME CORPORATION", "  IBM  ", "Foo Inc."}
	for _, in := range inputs {
		once := e.Normalize(in, models.EntityTypeCompany)
		twice := e.Normalize(once, models.EntityTypeCompany)
		assert.Equal(t, once, twice, "normalization must be idempotent for %q", in)
	}
}

func TestNormalize_StripsOrgSuffixes(t *testing.T) {
	e := NewEngine()
	got := e.Normalize("Acme Corp", models.EntityTypeCompany)
	assert.Equal(t, "acme", got)

	got = e.Normalize("ACME CORPORATION", models.EntityTypeCompany)
	assert.Equal(t, "acme", got)
}

func TestNormalize_UnknownTypeWhitespaceOnly(t *testing.T) {
	e := NewEngine()
	got := e.Normalize("  Acme   Corp  ", models.EntityTypeLocation)
	assert.Equal(t, "acme corp", got)
}

func TestNormalize_SetRulesReplacesEntirely(t *testing.T) {
	e := NewEngine()
	e.SetRules(nil)
	got := e.Normalize("Acme Corp", models.EntityTypeCompany)
	require.Equal(t, "acme corp", got)
}
