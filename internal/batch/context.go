// Package batch implements the in-batch deduplication and chunked-commit
// context that sits on top of a single resolution.Orchestrator: repeated
// mentions of the same (name, type) within one batch resolve once, and
// relationships between batch members are queued and created in bounded
// chunks at commit time rather than one at a time.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/entitygraph/resolver/internal/errors"
	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
	"github.com/entitygraph/resolver/internal/resolution"
)

// entry is a dedup slot: exactly one goroutine resolves it, every other
// caller for the same key waits on the same result via once.
type entry struct {
	once   sync.Once
	result *resolution.Result
	err    error
}

// pendingRelationship is a relationship between two batch members queued
// for creation at commit time.
type pendingRelationship struct {
	fromEntityID string
	toEntityID   string
	relType      string
	properties   map[string]any
	createdBy    string
}

// Context accumulates resolutions and pending relationships for a single
// batch. It is safe for concurrent use by multiple goroutines until
// Commit or Close has been called; after that every method returns an
// error. Grounded on the teacher's in-process connection-pool bookkeeping
// pattern (a mutex-guarded map plus a bounded work queue), adapted here to
// compare-and-set dedup semantics rather than pool-slot accounting.
type Context struct {
	orchestrator  *resolution.Orchestrator
	relationships *repository.RelationshipRepository
	opts          resolution.Options
	logger        *slog.Logger

	mu       sync.Mutex
	resolved map[string]*entry
	pending  []pendingRelationship
	closed   bool
}

// New builds a batch Context over an already-constructed orchestrator and
// relationship repository, using opts for every Resolve call and for
// BatchCommitChunkSize/MaxBatchSize enforcement.
func New(orchestrator *resolution.Orchestrator, relationships *repository.RelationshipRepository, opts resolution.Options) *Context {
	return &Context{
		orchestrator:  orchestrator,
		relationships: relationships,
		opts:          opts,
		logger:        slog.Default().With("component", "batch.Context"),
		resolved:      make(map[string]*entry),
	}
}

// dedupKey is the batch-local identity of a mention: lowercase(name)+type,
// matching the spec's case-insensitive in-batch dedup contract.
func dedupKey(name string, t models.EntityType) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x1f" + string(t)
}

// Resolve resolves input within this batch, returning the cached
// per-batch result on every call after the first for the same
// (lowercase(name), type) key. MaxBatchSize is enforced only against the
// count of distinct keys; repeat calls for an already-resolved key are
// free even once the limit has been reached.
func (c *Context) Resolve(ctx context.Context, input resolution.Input) (*resolution.Result, error) {
	e, err := c.claim(input)
	if err != nil {
		return nil, err
	}

	e.once.Do(func() {
		e.result, e.err = c.orchestrator.Resolve(ctx, input, c.opts)
	})
	return e.result, e.err
}

// claim returns the dedup entry for input's key, creating it if this is
// the first call for that key. MaxBatchSize is checked only on creation.
func (c *Context) claim(input resolution.Input) (*entry, error) {
	key := dedupKey(input.Name, input.Type)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.InvalidInputError("batch context is closed")
	}
	if e, ok := c.resolved[key]; ok {
		return e, nil
	}
	if len(c.resolved) >= c.opts.MaxBatchSize {
		return nil, errors.InvalidInputErrorf("batch size limit of %d exceeded", c.opts.MaxBatchSize)
	}

	e := &entry{}
	c.resolved[key] = e
	return e, nil
}

// AddRelationship enqueues a relationship between two mentions already
// resolved in this batch, identified by the same (name, type) pair passed
// to Resolve. Relationship creation is deferred to Commit so that many
// relationships can be created in bounded chunks rather than one graph
// round-trip per edge.
func (c *Context) AddRelationship(fromName string, fromType models.EntityType, toName string, toType models.EntityType, relationshipType string, properties map[string]any, createdBy string) error {
	from, err := c.resultFor(fromName, fromType)
	if err != nil {
		return fmt.Errorf("relationship source: %w", err)
	}
	to, err := c.resultFor(toName, toType)
	if err != nil {
		return fmt.Errorf("relationship target: %w", err)
	}
	if from.Entity == nil || to.Entity == nil {
		return errors.InvalidInputError("cannot relate a mention pending manual review")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.InvalidInputError("batch context is closed")
	}
	c.pending = append(c.pending, pendingRelationship{
		fromEntityID: from.Entity.ID,
		toEntityID:   to.Entity.ID,
		relType:      relationshipType,
		properties:   properties,
		createdBy:    createdBy,
	})
	return nil
}

// resultFor returns the already-resolved result for key, erroring if
// Resolve has not yet been called for it within this batch.
func (c *Context) resultFor(name string, t models.EntityType) (*resolution.Result, error) {
	key := dedupKey(name, t)

	c.mu.Lock()
	e, ok := c.resolved[key]
	c.mu.Unlock()
	if !ok {
		return nil, errors.InvalidInputErrorf("%q has not been resolved in this batch yet", name)
	}
	if e.err != nil {
		return nil, errors.InvalidInputErrorf("%q failed to resolve: %v", name, e.err)
	}
	return e.result, nil
}

// Commit creates every pending relationship in chunks of
// BatchCommitChunkSize, collecting per-item errors rather than aborting
// on the first failure, and checks ctx between chunks so cancellation
// stops further writes without unwinding work already committed.
// Resolution itself needs no separate commit step: entities, synonyms,
// and merges were already persisted as each Resolve call completed.
// When relationships were queued and none of them was created, the Result
// is returned together with a partial-batch-failure error.
func (c *Context) Commit(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.InvalidInputError("batch context is closed")
	}
	pending := c.pending
	c.pending = nil
	c.closed = true
	result := c.summarizeLocked()
	c.mu.Unlock()

	chunkSize := c.opts.BatchCommitChunkSize
	for start := 0; start < len(pending); start += chunkSize {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("commit cancelled: %w", err))
			break
		}

		end := start + chunkSize
		if end > len(pending) {
			end = len(pending)
		}

		for _, rel := range pending[start:end] {
			if err := c.createRelationship(ctx, rel); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.RelationshipsCreated++
		}
	}

	if len(pending) > 0 && result.RelationshipsCreated == 0 {
		return result, errors.PartialBatchFailureError("no pending relationship was created")
	}
	return result, nil
}

func (c *Context) createRelationship(ctx context.Context, rel pendingRelationship) error {
	err := c.relationships.Create(ctx, &models.LibraryRelationship{
		ID:               relationshipID(rel),
		SourceEntityID:   rel.fromEntityID,
		TargetEntityID:   rel.toEntityID,
		RelationshipType: rel.relType,
		Properties:       rel.properties,
		CreatedAt:        time.Now().UTC(),
		CreatedBy:        rel.createdBy,
	})
	if err != nil {
		c.logger.Warn("relationship creation failed", "type", rel.relType, "error", err)
		return errors.Wrap(err, errors.ErrorTypePartialBatchFailure, errors.SeverityMedium,
			fmt.Sprintf("failed to create %s relationship", rel.relType))
	}
	return nil
}

// summarizeLocked tallies outcomes across every resolved entry. Callers
// must hold c.mu.
func (c *Context) summarizeLocked() *Result {
	r := &Result{TotalEntitiesResolved: len(c.resolved)}
	for _, e := range c.resolved {
		if e.result == nil {
			continue
		}
		if e.result.IsNewEntity {
			r.NewEntitiesCreated++
		}
		if e.result.WasMerged {
			r.EntitiesMerged++
		}
	}
	return r
}

// Close discards any relationships queued but not yet committed and
// marks the batch closed. Safe to call after Commit; safe to call
// without ever committing to abandon a batch's pending relationships
// (already-resolved entities remain persisted, matching Commit's
// idempotent-w.r.t.-resolution contract).
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.closed = true
}

// relationshipID derives a stable identifier for a pending relationship
// from its endpoints and type, so retried chunk processing (e.g. after a
// future retry layer) merges onto the same edge rather than duplicating
// it.
func relationshipID(rel pendingRelationship) string {
	return rel.fromEntityID + ":" + rel.relType + ":" + rel.toEntityID
}
