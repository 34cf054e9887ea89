// Package reviewqueue provides the optional human-adjudication sink for
// resolution outcomes that land in the REVIEW band. Like llm.Provider, it
// degrades to a no-op when unconfigured rather than requiring callers to
// nil-check.
package reviewqueue

import (
	"context"

	"github.com/entitygraph/resolver/internal/models"
	"github.com/entitygraph/resolver/internal/repository"
)

// Queue is the capability the resolution orchestrator depends on for
// routing REVIEW-band outcomes to a human.
type Queue interface {
	// Submit enqueues item for adjudication.
	Submit(ctx context.Context, item *models.ReviewItem) error
	// Configured reports whether this queue actually persists items. The
	// orchestrator falls back to an audit-only record when false.
	Configured() bool
}

// NoopQueue is the default when no review queue is wired in. Submit is a
// cheap no-op; callers should check Configured() first to decide whether
// to fall back to an audit event instead.
type NoopQueue struct{}

// Noop returns a Queue that is never Configured.
func Noop() Queue { return NoopQueue{} }

func (NoopQueue) Configured() bool { return false }

func (NoopQueue) Submit(ctx context.Context, item *models.ReviewItem) error { return nil }

// GraphQueue persists review items to the graph via ReviewRepository.
type GraphQueue struct {
	repo *repository.ReviewRepository
}

// NewGraphQueue wraps a ReviewRepository as a Queue.
func NewGraphQueue(repo *repository.ReviewRepository) *GraphQueue {
	return &GraphQueue{repo: repo}
}

func (q *GraphQueue) Configured() bool { return true }

func (q *GraphQueue) Submit(ctx context.Context, item *models.ReviewItem) error {
	return q.repo.Create(ctx, item)
}
