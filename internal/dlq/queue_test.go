package dlq

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

func TestQueue_EnqueueThenMarkResolved(t *testing.T) {
	q := NewQueue(newTestDB(t))
	ctx := context.Background()

	err := q.Enqueue(ctx, "entity-1", "synonym_reinforcement", errors.New("support count bump failed"), nil)
	require.NoError(t, err)

	pending, err := q.GetPendingRetries(ctx, "entity-1", 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 0, pending[0].RetryCount)

	err = q.MarkResolved(ctx, "entity-1", "synonym_reinforcement")
	require.NoError(t, err)

	pending, err = q.GetPendingRetries(ctx, "entity-1", 5)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestQueue_EnqueueAgainBumpsRetryCount(t *testing.T) {
	q := NewQueue(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "entity-1", "audit_append", errors.New("boom"), nil))
	require.NoError(t, q.Enqueue(ctx, "entity-1", "audit_append", errors.New("boom again"), nil))

	pending, err := q.GetPendingRetries(ctx, "entity-1", 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, pending[0].RetryCount)
	require.Equal(t, "boom again", pending[0].ErrorMessage)
}
