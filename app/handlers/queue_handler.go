package handlers

import (
	"errors"
	"log"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/queue"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// QueueHandlerInterface defines the contract for delivery queue handlers
type QueueHandlerInterface interface {
	EnqueueMessage(c fiber.Ctx) error
	EnqueueCampaign(c fiber.Ctx) error
	JobStatus(c fiber.Ctx) error
	QueueStats(c fiber.Ctx) error
}

// QueueHandler handles delivery-queue HTTP requests
type QueueHandler struct {
	orchestrator *queue.Orchestrator
	validator    *validator.Validate
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(orchestrator *queue.Orchestrator) *QueueHandler {
	return &QueueHandler{
		orchestrator: orchestrator,
		validator:    validator.New(),
	}
}

func (h *QueueHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *QueueHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// EnqueueMessage handles queuing one ad-hoc send
// @Summary Enqueue Message
// @Description Queue a single message for paced delivery
// @Tags Queue
// @Accept json
// @Produce json
// @Param request body dto.EnqueueMessageRequest true "Message data"
// @Success 202 {object} dto.APIResponse{data=dto.EnqueueResponse} "Message queued"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/queue/messages [post]
func (h *QueueHandler) EnqueueMessage(c fiber.Ctx) error {
	var req dto.EnqueueMessageRequest
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

	job, err := h.orchestrator.EnqueueMessage(
		requestContext(c, "/api/v1/queue/messages"),
		req.CustomerID, req.CampaignID, req.Phone, req.Message,
		models.PacingPolicy(req.Pacing),
	)
	if err != nil {
		if errors.Is(err, utils.ErrPhoneTooShort) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid recipient phone", "INVALID_RECIPIENT", nil)
		}
		if errors.Is(err, queue.ErrCampaignNotFound) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if errors.Is(err, queue.ErrCampaignNotOwned) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Println("Message enqueue failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Message enqueue failed", "ENQUEUE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Message queued", dto.EnqueueResponse{
		JobID:    job.ID,
		Queue:    string(job.Queue),
		State:    string(job.State),
		QueuedAt: job.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// EnqueueCampaign handles queuing a whole-campaign bulk send
// @Summary Enqueue Campaign
// @Description Queue a whole campaign for sequential paced delivery
// @Tags Queue
// @Accept json
// @Produce json
// @Param request body dto.EnqueueCampaignRequest true "Campaign job data"
// @Success 202 {object} dto.APIResponse{data=dto.EnqueueResponse} "Campaign queued"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/queue/campaigns [post]
func (h *QueueHandler) EnqueueCampaign(c fiber.Ctx) error {
	var req dto.EnqueueCampaignRequest
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

	job, err := h.orchestrator.EnqueueCampaign(
		requestContext(c, "/api/v1/queue/campaigns"),
		req.CustomerID, req.CampaignID, req.DelayMs,
	)
	if err != nil {
		if errors.Is(err, queue.ErrCampaignNotFound) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if errors.Is(err, queue.ErrCampaignNotOwned) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
		}

		log.Println("Campaign enqueue failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign enqueue failed", "ENQUEUE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Campaign queued", dto.EnqueueResponse{
		JobID:    job.ID,
		Queue:    string(job.Queue),
		State:    string(job.State),
		QueuedAt: job.EnqueuedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// JobStatus handles reading one job's queue-side state
// @Summary Job Status
// @Description Get the queue-side state of one delivery job
// @Tags Queue
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=dto.JobStatusResponse} "Job status"
// @Failure 404 {object} dto.APIResponse "Job not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/queue/jobs/{id} [get]
func (h *QueueHandler) JobStatus(c fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Job ID is required", "MISSING_JOB_ID", nil)
	}

	job, err := h.orchestrator.JobStatus(requestContext(c, "/api/v1/queue/jobs/:id"), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Job not found", "JOB_NOT_FOUND", nil)
		}

		log.Println("Job status lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Job status lookup failed", "JOB_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Job status", dto.JobStatusResponse{
		JobID:      job.ID,
		Queue:      string(job.Queue),
		State:      string(job.State),
		Attempts:   job.Attempts,
		MaxRetries: job.MaxRetries,
		CampaignID: job.CampaignID,
		MessageID:  job.MessageID,
		EnqueuedAt: job.EnqueuedAt,
	})
}

// QueueStats handles reading depth and outcome counters of both queues
// @Summary Queue Stats
// @Description Get depth and outcome counters of the delivery queues
// @Tags Queue
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.QueueStatsResponse} "Queue stats"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/queue/stats [get]
func (h *QueueHandler) QueueStats(c fiber.Ctx) error {
	stats, err := h.orchestrator.Stats(requestContext(c, "/api/v1/queue/stats"))
	if err != nil {
		log.Println("Queue stats lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Queue stats lookup failed", "QUEUE_STATS_FAILED", nil)
	}

	resp := dto.QueueStatsResponse{}
	if s, ok := stats[queue.QueueMessages]; ok {
		resp.Messages = dto.QueueStatsEntry{
			Queued:     s.Queued,
			Processing: s.Processing,
			Succeeded:  s.Succeeded,
			Retried:    s.Retried,
			Exhausted:  s.Exhausted,
		}
	}
	if s, ok := stats[queue.QueueCampaigns]; ok {
		resp.Campaigns = dto.QueueStatsEntry{
			Queued:     s.Queued,
			Processing: s.Processing,
			Succeeded:  s.Succeeded,
			Retried:    s.Retried,
			Exhausted:  s.Exhausted,
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Queue stats", resp)
}
