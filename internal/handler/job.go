package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/middleware"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/service"
	"github.com/iudofia2026/youtubedubber.com-sub004/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/jobs. Submitting the same job id twice
// returns the existing job rather than creating a second one.
func (h *JobHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	accountID := middleware.GetAccountID(c)
	result, err := h.service.SubmitJob(c.Context(), accountID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCredits):
			return response.InsufficientCredits(c, "Not enough credits for the requested languages")
		case errors.Is(err, service.ErrInvalidRequest):
			return response.ValidationError(c, err.Error(), nil)
		default:
			return response.ServiceError(c, "Failed to submit job")
		}
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId.
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	accountID := middleware.GetAccountID(c)
	result, err := h.service.JobStatus(c.Context(), accountID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, "Failed to load job status")
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/jobs/:jobId/cancel.
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	accountID := middleware.GetAccountID(c)
	result, err := h.service.CancelJob(c.Context(), accountID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, "Failed to cancel job")
	}

	return response.OK(c, result)
}

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
