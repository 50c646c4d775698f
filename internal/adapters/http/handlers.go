package http

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/scheduler"
)

// placeStatsResponse is PlaceStats plus the derived image percentage.
type placeStatsResponse struct {
	domain.PlaceStats
	ImagePercentage float64 `json:"image_percentage"`
}

// ListJobsHandler returns every registered job with its schedule and last run.
// GET /v1/jobs
func ListJobsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jobs := deps.Jobs.Jobs()
		if jobs == nil {
			jobs = []scheduler.JobInfo{}
		}
		return c.JSON(fiber.Map{"data": jobs, "count": len(jobs)})
	}
}

// GetJobHandler returns a single job.
// GET /v1/jobs/:name
func GetJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		for _, j := range deps.Jobs.Jobs() {
			if j.Name == name {
				return c.JSON(j)
			}
		}
		return errNotFound(c, "job not found")
	}
}

// RunJobHandler starts a job asynchronously.
// POST /v1/jobs/:name/run
func RunJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := deps.Jobs.Trigger(name, scheduler.TriggerHTTP); err != nil {
			return errFromDomain(c, err)
		}
		LoggerFromCtx(c.UserContext()).Info("job triggered", "job", name)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"job":     name,
			"status":  "started",
			"trigger": scheduler.TriggerHTTP,
		})
	}
}

// PlaceStatsHandler returns store-wide aggregates.
// GET /v1/places/stats
func PlaceStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Places.Stats(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(placeStatsResponse{
			PlaceStats:      stats,
			ImagePercentage: math.Round(stats.ImagePercentage()*100) / 100,
		})
	}
}
