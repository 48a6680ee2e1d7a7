package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/amirphl/Susanoo/app/dto"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ContactHandlerInterface defines the contract for contact handlers
type ContactHandlerInterface interface {
	ImportContacts(c fiber.Ctx) error
}

// ContactHandler handles contact import HTTP requests
type ContactHandler struct {
	importFlow businessflow.ContactImportFlow
	validator  *validator.Validate
}

// NewContactHandler creates a new contact handler
func NewContactHandler(importFlow businessflow.ContactImportFlow) *ContactHandler {
	return &ContactHandler{
		importFlow: importFlow,
		validator:  validator.New(),
	}
}

func (h *ContactHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ContactHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ImportContacts handles a contact import batch. JSON bodies carry the
// contacts inline; multipart bodies carry an xlsx file under the "file"
// field.
// @Summary Import Contacts
// @Description Import contacts into a campaign from JSON or an uploaded xlsx file
// @Tags Contacts
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.ImportContactsRequest false "Contacts (JSON import)"
// @Success 200 {object} dto.APIResponse{data=dto.ImportContactsResponse} "Import report"
// @Failure 400 {object} dto.APIResponse "Validation error or unreadable file"
// @Failure 403 {object} dto.APIResponse "Access denied"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign contact list frozen"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id}/contacts/import [post]
func (h *ContactHandler) ImportContacts(c fiber.Ctx) error {
	campaignID, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	ctx := requestContext(c, "/api/v1/campaigns/:id/contacts/import")

	var result *dto.ImportContactsResponse
	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Import file is required", "MISSING_IMPORT_FILE", nil)
		}
		file, err := header.Open()
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Import file could not be read", "IMPORT_FILE_UNREADABLE", nil)
		}
		defer file.Close()

		result, err = h.importFlow.ImportContactsFromXLSX(ctx, customerID, campaignID, file)
		if err != nil {
			return h.importError(c, err)
		}
	} else {
		var req dto.ImportContactsRequest
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if err := h.validator.Struct(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
		}

		req.CustomerID = customerID
		req.CampaignID = campaignID

		result, err = h.importFlow.ImportContacts(ctx, &req)
		if err != nil {
			return h.importError(c, err)
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Contacts imported", result)
}

// importError maps import flow failures to HTTP responses
func (h *ContactHandler) importError(c fiber.Ctx, err error) error {
	var berr *businessflow.BusinessError
	if errors.As(err, &berr) {
		switch berr.Code {
		case "CAMPAIGN_NOT_FOUND":
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", berr.Code, nil)
		case "CAMPAIGN_ACCESS_DENIED":
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", berr.Code, nil)
		case "CAMPAIGN_NOT_MODIFIABLE":
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign contact list is frozen", berr.Code, nil)
		case "IMPORT_VALIDATION_FAILED", "IMPORT_FILE_UNREADABLE", "IMPORT_FILE_EMPTY":
			return h.ErrorResponse(c, fiber.StatusBadRequest, berr.Message, berr.Code, nil)
		}
	}

	log.Println("Contact import failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Contact import failed", "IMPORT_FAILED", nil)
}
