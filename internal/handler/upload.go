package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/middleware"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/service"
	"github.com/iudofia2026/youtubedubber.com-sub004/pkg/response"
)

var allowedUploadTypes = map[string]bool{
	"audio/wav":  true,
	"audio/x-wav": true,
	"audio/wave": true,
	"audio/mpeg": true,
	"audio/mp3":  true,
	"audio/mp4":  true,
	"audio/x-m4a": true,
	"audio/aac":  true,
	"video/mp4":  true,
}

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Targets handles POST /api/uploads: returns presigned PUT URLs for the
// track files plus the refs to submit with the job.
func (h *UploadHandler) Targets(c *fiber.Ctx) error {
	var req model.UploadTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if !allowedUploadTypes[req.ContentType] {
		return response.ValidationError(c, "Unsupported content type", map[string]interface{}{
			"contentType": req.ContentType,
		})
	}

	accountID := middleware.GetAccountID(c)
	result, err := h.service.CreateUploadTargets(c.Context(), accountID, &req)
	if err != nil {
		return response.ServiceError(c, "Failed to create upload targets")
	}

	return response.Created(c, result)
}
