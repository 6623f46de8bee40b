package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/pkg/response"
)

type SummaryHandler struct {
	service *service.SummaryService
}

func NewSummaryHandler(svc *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{service: svc}
}

// GetSummary handles GET /api/summary/:jobId
func (h *SummaryHandler) GetSummary(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	summary, err := h.service.Summarize(c.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			return response.Error(c, fiber.StatusConflict, response.CodeValidationError, "Job has not completed yet", nil)
		default:
			return response.GenerationError(c, "Failed to generate summary")
		}
	}

	return response.OK(c, summary)
}
