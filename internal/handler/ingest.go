package handler

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/middleware"
	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/pkg/response"
)

const maxUploadSize = 200 * 1024 * 1024 // 200MB

// Content types accepted for direct upload, mapped to their modality.
var uploadFileTypes = map[string]model.FileType{
	"application/pdf": model.FileTypeDocument,
	"text/plain":      model.FileTypeDocument,
	"text/markdown":   model.FileTypeDocument,
	"video/mp4":       model.FileTypeVideo,
	"video/webm":      model.FileTypeVideo,
	"audio/mpeg":      model.FileTypeAudio,
	"audio/mp4":       model.FileTypeAudio,
	"audio/wav":       model.FileTypeAudio,
	"audio/x-wav":     model.FileTypeAudio,
	"image/png":       model.FileTypeImage,
	"image/jpeg":      model.FileTypeImage,
	"image/webp":      model.FileTypeImage,
}

type IngestHandler struct {
	service   *service.IngestService
	storage   client.StorageClient
	validator *validator.Validate
}

func NewIngestHandler(svc *service.IngestService, storage client.StorageClient, v *validator.Validate) *IngestHandler {
	return &IngestHandler{
		service:   svc,
		storage:   storage,
		validator: v,
	}
}

// Ingest handles POST /api/ingest. The body is either a multipart upload
// (file + fileType) or a JSON payload referencing content by URL. Either
// way the job is enqueued and a jobId returned immediately.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	contentType := string(c.Request().Header.ContentType())
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return h.ingestUpload(c)
	}
	return h.ingestURL(c)
}

func (h *IngestHandler) ingestURL(c *fiber.Ctx) error {
	var req model.IngestURLRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	metadata := buildMetadata(c, req.Title, req.CourseID, req.Tags, req.Metadata)
	result, err := h.service.CreateJob(c.Context(), req.FileType, req.FileURL, metadata, req.Priority)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

func (h *IngestHandler) ingestUpload(c *fiber.Ctx) error {
	fileType := c.FormValue("fileType")
	if fileType == "" {
		return response.ValidationError(c, "fileType is required", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 200MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	uploadType := file.Header.Get("Content-Type")
	if _, ok := uploadFileTypes[uploadType]; !ok {
		return response.ValidationError(c, "Unsupported upload content type", map[string]interface{}{
			"contentType": uploadType,
		})
	}

	if h.storage == nil {
		return response.ServiceError(c, "File uploads require object storage; use a fileUrl payload instead")
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	fileID := uuid.New().String()
	key := fmt.Sprintf("content/%s/%s/%s", middleware.GetUserID(c), fileID, file.Filename)
	if _, err := h.storage.Upload(c.Context(), key, f, uploadType); err != nil {
		return response.ServiceError(c, "Failed to store uploaded file")
	}

	metadata := buildMetadata(c, c.FormValue("title"), c.FormValue("courseId"), splitTags(c.FormValue("tags")), nil)
	metadata["fileId"] = fileID
	metadata["filename"] = file.Filename

	result, err := h.service.CreateJob(c.Context(), fileType, key, metadata, 0)
	if err != nil {
		// No job record points at the object; remove it.
		_ = h.storage.Delete(c.Context(), key)
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

func buildMetadata(c *fiber.Ctx, title, courseID string, tags []string, extra map[string]string) map[string]string {
	metadata := make(map[string]string)
	for k, v := range extra {
		metadata[k] = v
	}
	if title != "" {
		metadata["title"] = title
	}
	if courseID != "" {
		metadata["courseId"] = courseID
	}
	if len(tags) > 0 {
		metadata["tags"] = strings.Join(tags, ",")
	}
	if userID := middleware.GetUserID(c); userID != "" {
		metadata["userId"] = userID
	}
	return metadata
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
