package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/scheduler"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	CancelSchedule(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	scheduler    *scheduler.CampaignScheduler
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, sched *scheduler.CampaignScheduler) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		scheduler:    sched,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// campaignIDParam parses the :id path parameter
func campaignIDParam(c fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid campaign id")
	}
	return uint(id), nil
}

// CreateCampaign handles the campaign creation process
// @Summary Create Campaign
// @Description Create a new draft campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body dto.CreateCampaignRequest true "Campaign creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateCampaignResponse} "Campaign created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	ctx := requestContext(c, "/api/v1/campaigns")
	result, err := h.campaignFlow.CreateCampaign(ctx, &req)
	if err != nil {
		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	// optionally schedule in the same request
	if req.ScheduledAt != nil {
		if err := h.scheduler.ScheduleCampaign(ctx, customerID, result.ID, *req.ScheduledAt); err != nil {
			if errors.Is(err, scheduler.ErrScheduleTimeInPast) {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
			}
			log.Println("Campaign scheduling failed", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign scheduling failed", "SCHEDULE_FAILED", nil)
		}
		result.Status = "scheduled"
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// GetCampaign handles reading one campaign with its delivery counters
// @Summary Get Campaign
// @Description Get one campaign with its cached delivery counters
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.GetCampaignResponse} "Campaign"
// @Failure 403 {object} dto.APIResponse "Access denied"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	campaignID, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.GetCampaign(requestContext(c, "/api/v1/campaigns/:id"), customerID, campaignID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsCampaignAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Println("Campaign lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign lookup failed", "CAMPAIGN_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign", result)
}

// ListCampaigns handles listing the customer's campaigns
// @Summary List Campaigns
// @Description List the customer's campaigns, newest first
// @Tags Campaigns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=[]dto.GetCampaignResponse} "Campaigns"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	result, err := h.campaignFlow.ListCampaigns(requestContext(c, "/api/v1/campaigns"), customerID, page, pageSize)
	if err != nil {
		if errors.Is(err, businessflow.ErrInvalidPage) || errors.Is(err, businessflow.ErrInvalidPageSize) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination", "INVALID_FILTER", nil)
		}

		log.Println("Campaign list failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign list failed", "CAMPAIGN_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns", result)
}

// ScheduleCampaign handles scheduling a campaign for a future fire
// @Summary Schedule Campaign
// @Description Schedule a campaign to be queued at a future time
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign ID"
// @Param request body dto.ScheduleCampaignRequest true "Schedule data"
// @Success 200 {object} dto.APIResponse{data=dto.ScheduleCampaignResponse} "Campaign scheduled"
// @Failure 400 {object} dto.APIResponse "Validation error or time in the past"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 409 {object} dto.APIResponse "Campaign not schedulable"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id}/schedule [post]
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	campaignID, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.ScheduleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	err = h.scheduler.ScheduleCampaign(requestContext(c, "/api/v1/campaigns/:id/schedule"), customerID, campaignID, req.ScheduledAt)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrScheduleTimeInPast):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
		case errors.Is(err, scheduler.ErrCampaignNotFound):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		case errors.Is(err, scheduler.ErrCampaignNotOwned):
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
		case errors.Is(err, scheduler.ErrCampaignNotSchedulable):
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be scheduled in its current status", "CAMPAIGN_NOT_SCHEDULABLE", nil)
		}

		log.Println("Campaign scheduling failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign scheduling failed", "SCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign scheduled", dto.ScheduleCampaignResponse{
		Message:      "Campaign scheduled",
		ScheduledFor: req.ScheduledAt.UTC().Format(time.RFC3339),
	})
}

// CancelSchedule handles cancelling a campaign's schedule
// @Summary Cancel Schedule
// @Description Cancel a campaign's pending schedule; cancelling an unscheduled campaign is a no-op
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse "Schedule cancelled"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{id}/schedule [delete]
func (h *CampaignHandler) CancelSchedule(c fiber.Ctx) error {
	campaignID, err := campaignIDParam(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", "INVALID_CAMPAIGN_ID", nil)
	}

	customerID, ok := customerIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	err = h.scheduler.CancelSchedule(requestContext(c, "/api/v1/campaigns/:id/schedule"), customerID, campaignID)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrCampaignNotFound):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		case errors.Is(err, scheduler.ErrCampaignNotOwned):
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Println("Schedule cancellation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule cancellation failed", "CANCEL_SCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule cancelled", nil)
}
