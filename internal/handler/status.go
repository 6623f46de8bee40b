package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/pkg/response"
)

type StatusHandler struct {
	service *service.IngestService
}

func NewStatusHandler(svc *service.IngestService) *StatusHandler {
	return &StatusHandler{service: svc}
}

// GetStatus handles GET /api/status/:jobId
func (h *StatusHandler) GetStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	status, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, "Failed to load job status")
	}

	return response.OK(c, status)
}

// GetLogs handles GET /api/status/:jobId/logs
func (h *StatusHandler) GetLogs(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	logs, err := h.service.GetLogs(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, "Failed to load job logs")
	}

	return response.OK(c, &model.LogsResponse{JobID: jobID, Logs: logs})
}
