package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
	"github.com/tricket/tricket-integrations/internal/pkg/validation"
)

// PipelineController exposes the enrichment queue to operators.
type PipelineController struct {
	deps *Dependencies
}

func NewPipelineController(deps *Dependencies) *PipelineController {
	return &PipelineController{deps: deps}
}

type resweepRequest struct {
	OlderThanMinutes int `json:"older_than_minutes" validate:"gte=0,lte=10080"`
	Limit            int `json:"limit" validate:"gte=0,lte=1000"`
}

// HandleJobStats reports queue depth and per-status job counters.
func (pc *PipelineController) HandleJobStats(c *fiber.Ctx) error {
	q := pc.deps.Queue
	if q == nil {
		return apperror.NotFound("Job queue is not enabled")
	}
	ctx := c.UserContext()

	stats, err := q.GetJobStats(ctx)
	if err != nil {
		return apperror.Internal("failed to read job stats", err)
	}
	pending, err := q.GetQueueSize(ctx)
	if err != nil {
		return apperror.Internal("failed to read queue size", err)
	}
	processing, err := q.GetProcessingSize(ctx)
	if err != nil {
		return apperror.Internal("failed to read processing size", err)
	}

	return c.JSON(fiber.Map{
		"queued":     pending,
		"processing": processing,
		"stats":      stats,
		"running":    q.IsRunning(),
	})
}

// HandleJob returns one job by id.
func (pc *PipelineController) HandleJob(c *fiber.Ctx) error {
	q := pc.deps.Queue
	if q == nil {
		return apperror.NotFound("Job queue is not enabled")
	}
	job, err := q.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperror.NotFound("Job not found")
		}
		return apperror.Internal("failed to read job", err)
	}
	return c.JSON(job)
}

// HandleResweep hands stale PENDING lookup responses off again.
func (pc *PipelineController) HandleResweep(c *fiber.Ctx) error {
	var req resweepRequest
	if err := validation.BindJSON(c, &req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = defaultResweepLimit
	}

	n, err := pc.deps.Pipeline.ResweepPending(c.UserContext(), minutes(req.OlderThanMinutes), req.Limit)
	if err != nil {
		return apperror.Internal("failed to resweep pending responses", err)
	}
	return c.JSON(fiber.Map{"handed_off": n})
}
