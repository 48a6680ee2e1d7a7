package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/poller"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// signatureHeader carries the HMAC-SHA256 hex digest of the raw body
const signatureHeader = "X-Webhook-Signature"

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	DeliveryConfirmation(c fiber.Ctx) error
}

// WebhookHandler handles inbound delivery confirmations from the backend
// gateways. The raw body is authenticated before parsing; a bad signature is
// rejected without reading the payload.
type WebhookHandler struct {
	reconciler *poller.Reconciler
	cfg        config.WebhookConfig
	validator  *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler *poller.Reconciler, cfg config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		cfg:        cfg,
		validator:  validator.New(),
	}
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// DeliveryConfirmation handles one delivery confirmation callback
// @Summary Delivery Confirmation
// @Description Apply an externally reported delivery status; authenticated by HMAC signature
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "HMAC-SHA256 hex digest of the body"
// @Param request body dto.DeliveryWebhookRequest true "Delivery confirmation"
// @Success 200 {object} dto.APIResponse "Confirmation applied"
// @Failure 400 {object} dto.APIResponse "Validation error or unknown status"
// @Failure 401 {object} dto.APIResponse "Missing or invalid signature"
// @Failure 404 {object} dto.APIResponse "Unknown provider message id"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/webhooks/delivery [post]
func (h *WebhookHandler) DeliveryConfirmation(c fiber.Ctx) error {
	signature := c.Get(signatureHeader)
	if signature == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Webhook signature is required", "MISSING_SIGNATURE", nil)
	}

	body := c.Body()
	if !poller.VerifySignature(h.cfg.Secret, body, signature) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Webhook signature is invalid", "INVALID_SIGNATURE", nil)
	}

	var req dto.DeliveryWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	at := utils.UTCNow()
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}

	err := h.reconciler.ApplyConfirmation(requestContext(c, "/api/v1/webhooks/delivery"), req.ProviderMessageID, req.Status, at)
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrUnknownProviderMessage):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown provider message id", "UNKNOWN_PROVIDER_MESSAGE", nil)
		case errors.Is(err, poller.ErrUnknownDeliveryStatus):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unrecognized delivery status", "UNKNOWN_DELIVERY_STATUS", nil)
		}

		log.Println("Delivery confirmation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Delivery confirmation failed", "CONFIRMATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Confirmation applied", fiber.Map{
		"provider_message_id": req.ProviderMessageID,
		"status":              req.Status,
		"applied_at":          at.Format(time.RFC3339),
	})
}
