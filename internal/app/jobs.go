package app

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalog/internal/queue"
)

const (
	defaultDeadPageSize = 20
	maxDeadPageSize     = 100
)

// jobsHandler exposes dead derivative jobs to operators.
type jobsHandler struct {
	dead queue.DeadJobs
}

// ListDead lists jobs that exhausted their attempts
// (GET /api/jobs/dead?page=&size=).
func (h *jobsHandler) ListDead(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size < 1 || size > maxDeadPageSize {
		size = defaultDeadPageSize
	}

	jobs, err := h.dead.ListDead(page, size)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []queue.DeadJob{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": jobs,
		"page":  page,
		"size":  size,
	})
}

// RetryDead moves one dead job back to pending
// (POST /api/jobs/dead/:taskID/retry).
func (h *jobsHandler) RetryDead(c echo.Context) error {
	taskID := c.Param("taskID")
	if err := h.dead.RetryDead(taskID); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "queued",
		"taskId": taskID,
	})
}
