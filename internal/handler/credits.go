package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/middleware"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/service"
	"github.com/iudofia2026/youtubedubber.com-sub004/pkg/response"
)

type CreditHandler struct {
	service   *service.CreditService
	validator *validator.Validate
}

func NewCreditHandler(svc *service.CreditService, v *validator.Validate) *CreditHandler {
	return &CreditHandler{
		service:   svc,
		validator: v,
	}
}

// Balance handles GET /api/credits.
func (h *CreditHandler) Balance(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)
	result, err := h.service.Balance(c.Context(), accountID)
	if err != nil {
		return response.ServiceError(c, "Failed to load balance")
	}
	return response.OK(c, result)
}

// ConfirmPurchase handles POST /api/credits/confirm.
func (h *CreditHandler) ConfirmPurchase(c *fiber.Ctx) error {
	var req model.ConfirmPurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	accountID := middleware.GetAccountID(c)
	result, err := h.service.ConfirmPurchase(c.Context(), accountID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, "Failed to confirm purchase")
	}

	return response.OK(c, result)
}
