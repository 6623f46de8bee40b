package handler

import (
	"bufio"
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/pkg/response"
)

type QueryHandler struct {
	service   *service.QueryService
	validator *validator.Validate
}

func NewQueryHandler(svc *service.QueryService, v *validator.Validate) *QueryHandler {
	return &QueryHandler{service: svc, validator: v}
}

// Query handles POST /api/query. With options.streamResponse the answer is
// streamed as newline-delimited JSON events; otherwise a single result
// document is returned.
func (h *QueryHandler) Query(c *fiber.Ctx) error {
	var req model.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.Options != nil && req.Options.StreamResponse {
		return h.stream(c, &req)
	}

	result, err := h.service.Query(c.Context(), &req)
	if err != nil {
		return response.GenerationError(c, err.Error())
	}

	return response.OK(c, result)
}

func (h *QueryHandler) stream(c *fiber.Ctx, req *model.QueryRequest) error {
	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Cache-Control", "no-cache")
	c.Set("X-Accel-Buffering", "no")

	// The stream writer runs after the handler returns, so it needs its
	// own context; cancelling it stops the producer when the client goes
	// away mid-stream.
	ctx, cancel := context.WithCancel(context.Background())

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		enc := json.NewEncoder(w)
		events := h.service.QueryStream(ctx, req)
		for chunk := range events {
			if err := enc.Encode(chunk); err != nil {
				break
			}
			if err := w.Flush(); err != nil {
				// Client disconnected; stop the producer.
				break
			}
		}
		cancel()
		for range events {
		}
	}))

	return nil
}
