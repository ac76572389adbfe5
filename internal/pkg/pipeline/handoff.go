package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tricket/tricket-integrations/internal/pkg/jobqueue"
	"github.com/tricket/tricket-integrations/internal/pkg/usercontext"
)

// Handoff passes freshly persisted lookup responses to stage 2.
type Handoff interface {
	Handoff(ctx context.Context, responseIDs []uint, actor string) error
}

// DirectHandoff runs stage 2 in the calling goroutine.
type DirectHandoff struct {
	o *Orchestrator
}

func (d DirectHandoff) Handoff(ctx context.Context, responseIDs []uint, actor string) error {
	_, err := d.o.ProcessResponses(ctx, responseIDs, actor)
	return err
}

// QueueHandoff enqueues stage 2 as a product enrichment job. Jobs are
// retried by the queue, and stage 2 skips rows that are already processed.
type QueueHandoff struct {
	queue *jobqueue.Queue
}

// NewQueueHandoff registers the enrichment handler on q and returns a
// handoff that feeds it.
func NewQueueHandoff(q *jobqueue.Queue, o *Orchestrator) *QueueHandoff {
	q.Register(jobqueue.JobTypeProductEnrichment, func(ctx context.Context, job *jobqueue.Job) error {
		payload, err := jobqueue.ProductEnrichmentPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode enrichment payload: %w", err)
		}
		_, err = o.ProcessResponses(ctx, payload.ResponseIDs, payload.Actor)
		return err
	})
	return &QueueHandoff{queue: q}
}

func (h *QueueHandoff) Handoff(ctx context.Context, responseIDs []uint, actor string) error {
	payload := jobqueue.ProductEnrichmentPayload{ResponseIDs: responseIDs, Actor: actor}
	job, err := h.queue.Enqueue(ctx, jobqueue.JobTypeProductEnrichment, payload.ToMap())
	if err != nil {
		return err
	}
	log.Infof("[Pipeline] Enqueued enrichment job %s for %d responses", job.ID, len(responseIDs))
	return nil
}

// ResweepPending hands off PENDING responses older than olderThan again.
// It recovers handoffs lost between the stage 1 commit and stage 2.
func (o *Orchestrator) ResweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ids, err := o.store.PendingLookupIDs(ctx, o.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending responses: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	log.Warnf("[Pipeline] Re-handing off %d stale pending responses", len(ids))
	if err := o.handoff.Handoff(ctx, ids, usercontext.SystemActor); err != nil {
		return 0, err
	}
	return len(ids), nil
}
