package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitygraph/resolver/internal/models"
)

func TestAuditRepository_AppendAndList(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["AuditEntry"] = []map[string]any{
		{
			"id": "a1", "action": "ENTITY_MERGED", "entityId": "e1", "actorId": "system",
			"details": `{"reason":"auto-merge"}`, "timestamp": time.Now().UTC(),
		},
	}
	repo := NewAuditRepository(backend)

	entry := &models.AuditEntry{
		ID: "a1", Action: models.ActionEntityMerged, EntityID: "e1", ActorID: "system",
		Details: map[string]interface{}{"reason": "auto-merge"}, Timestamp: time.Now().UTC(),
	}
	require.NoError(t, repo.Append(context.Background(), entry))

	entries, err := repo.ListByEntity(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionEntityMerged, entries[0].Action)
	assert.Equal(t, "auto-merge", entries[0].Details["reason"])
}

func TestLedgerRepository_AppendAndList(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["MergeRecord"] = []map[string]any{
		{
			"id": "m1", "sourceId": "e1", "targetId": "e2", "sourceName": "Acme", "targetName": "Acme Corp",
			"confidence": 0.95, "decisionKind": "AUTO_MERGE", "triggeredBy": "system",
			"reasoning": "exact match", "timestamp": time.Now().UTC(),
		},
	}
	repo := NewLedgerRepository(backend)

	rec := &models.MergeRecord{
		ID: "m1", SourceID: "e1", TargetID: "e2", SourceName: "Acme", TargetName: "Acme Corp",
		Confidence: 0.95, DecisionKind: models.DecisionAutoMerge, TriggeredBy: "system",
		Reasoning: "exact match", Timestamp: time.Now().UTC(),
	}
	require.NoError(t, repo.Append(context.Background(), rec))

	records, err := repo.ListByTarget(context.Background(), "e2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.DecisionAutoMerge, records[0].DecisionKind)
}

func TestDuplicateRepository_CreateAndList(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["DUPLICATE_OF"] = []map[string]any{
		{
			"id": "dup1", "originalName": "ACME INC", "normalizedName": "acme",
			"sourceSystem": "crm", "createdAt": time.Now().UTC(),
		},
	}
	repo := NewDuplicateRepository(backend)

	d := &models.DuplicateEntity{
		ID: "dup1", OriginalName: "ACME INC", NormalizedName: "acme",
		SourceSystem: "crm", TargetEntityID: "e1", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), d))

	dups, err := repo.ListByTarget(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "ACME INC", dups[0].OriginalName)
}
