package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestResolutionCache_SetGetInvalidate(t *testing.T) {
	c := NewResolutionCache(50*time.Millisecond, nil)

	_, found := c.Get("acme", models.EntityTypeCompany)
	assert.False(t, found)

	c.Set("acme", models.EntityTypeCompany, "e1")
	id, found := c.Get("acme", models.EntityTypeCompany)
	assert.True(t, found)
	assert.Equal(t, "e1", id)

	c.Invalidate("acme", models.EntityTypeCompany)
	_, found = c.Get("acme", models.EntityTypeCompany)
	assert.False(t, found)
}

func TestResolutionCache_KeyScopedByType(t *testing.T) {
	c := NewResolutionCache(time.Minute, nil)
	c.Set("acme", models.EntityTypeCompany, "e1")
	c.Set("acme", models.EntityTypePerson, "e2")

	companyID, _ := c.Get("acme", models.EntityTypeCompany)
	personID, _ := c.Get("acme", models.EntityTypePerson)
	assert.Equal(t, "e1", companyID)
	assert.Equal(t, "e2", personID)
}

func TestResolutionCache_Expiry(t *testing.T) {
	c := NewResolutionCache(10*time.Millisecond, nil)
	c.Set("acme", models.EntityTypeCompany, "e1")
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get("acme", models.EntityTypeCompany)
	assert.False(t, found)
}

func TestResolutionCache_WithDisk_SurvivesMemoryEviction(t *testing.T) {
	store, err := OpenPersistentStore(filepath.Join(t.TempDir(), "resolutions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := NewResolutionCache(time.Minute, nil).WithDisk(store)
	c.Set("acme", models.EntityTypeCompany, "e1")

	// Simulate a cold process: a fresh in-memory cache sharing only the
	// disk tier should still resolve without the original mem entry.
	restarted := NewResolutionCache(time.Minute, nil).WithDisk(store)
	id, found := restarted.Get("acme", models.EntityTypeCompany)
	require.True(t, found)
	assert.Equal(t, "e1", id)
}

func TestResolutionCache_WithDisk_InvalidateRemovesBothTiers(t *testing.T) {
	store, err := OpenPersistentStore(filepath.Join(t.TempDir(), "resolutions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := NewResolutionCache(time.Minute, nil).WithDisk(store)
	c.Set("acme", models.EntityTypeCompany, "e1")
	c.Invalidate("acme", models.EntityTypeCompany)

	restarted := NewResolutionCache(time.Minute, nil).WithDisk(store)
	_, found := restarted.Get("acme", models.EntityTypeCompany)
	assert.False(t, found)
}
