package handlers

import (
	"log"
	"strconv"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/gofiber/fiber/v3"
)

// SessionHandlerInterface defines the contract for session handlers
type SessionHandlerInterface interface {
	SessionStatus(c fiber.Ctx) error
}

// SessionHandler handles delivery-backend session HTTP requests
type SessionHandler struct {
	registry *services.SessionRegistry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *services.SessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SessionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SessionStatus handles reading one account's backend session connectivity
// @Summary Session Status
// @Description Get connectivity of both delivery backends for one account
// @Tags Sessions
// @Produce json
// @Param userID path int true "Customer ID"
// @Success 200 {object} dto.APIResponse{data=dto.SessionStatusResponse} "Session status"
// @Failure 400 {object} dto.APIResponse "Invalid customer ID"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/sessions/{userID}/status [get]
func (h *SessionHandler) SessionStatus(c fiber.Ctx) error {
	raw := c.Params("userID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid customer ID", "INVALID_CUSTOMER_ID", nil)
	}
	customerID := uint(id)

	ctx := requestContext(c, "/api/v1/sessions/:userID/status")
	resp := dto.SessionStatusResponse{
		CustomerID: customerID,
		Backends:   make(map[string]dto.BackendStatus, 2),
	}

	for _, backend := range []models.DeliveryMethod{models.DeliveryMethodPrimary, models.DeliveryMethodFallback} {
		status, err := h.registry.Status(ctx, customerID, backend)
		if err != nil {
			// a backend that cannot be reached counts as disconnected
			log.Println("Session status lookup failed", backend, err)
			resp.Backends[string(backend)] = dto.BackendStatus{Connected: false}
			continue
		}
		resp.Backends[string(backend)] = dto.BackendStatus{
			Connected: status.Connected,
			PushName:  status.PushName,
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Session status", resp)
}
