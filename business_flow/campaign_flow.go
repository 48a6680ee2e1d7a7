// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, customerID, campaignID uint) (*dto.GetCampaignResponse, error)
	ListCampaigns(ctx context.Context, customerID uint, page, pageSize int) ([]*dto.GetCampaignResponse, error)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(campaignRepo repository.CampaignRepository, db *gorm.DB) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		db:           db,
	}
}

// CreateCampaign creates a draft campaign for the customer
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest) (*dto.CreateCampaignResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignNameRequired)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignMessageRequired)
	}

	pacing := models.PacingBalanced
	if req.Pacing != "" {
		pacing = models.PacingPolicy(req.Pacing)
		if !pacing.Valid() {
			return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrInvalidPacingPolicy)
		}
	}

	campaign := &models.Campaign{
		UUID:        uuid.New(),
		CustomerID:  req.CustomerID,
		Name:        strings.TrimSpace(req.Name),
		MessageBody: req.Message,
		Pacing:      pacing,
		Status:      models.CampaignStatusDraft,
	}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:   "Campaign created successfully",
		ID:        campaign.ID,
		UUID:      campaign.UUID.String(),
		Status:    campaign.Status.String(),
		CreatedAt: campaign.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// GetCampaign returns one campaign with its cached delivery counters
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, customerID, campaignID uint) (*dto.GetCampaignResponse, error) {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.CustomerID != customerID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}

	return toCampaignResponse(campaign), nil
}

// ListCampaigns returns the customer's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, customerID uint, page, pageSize int) ([]*dto.GetCampaignResponse, error) {
	if page < 1 {
		return nil, NewBusinessError("INVALID_FILTER", "Invalid pagination", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, NewBusinessError("INVALID_FILTER", "Invalid pagination", ErrInvalidPageSize)
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx,
		models.CampaignFilter{CustomerID: &customerID},
		"created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	out := make([]*dto.GetCampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}
	return out, nil
}

func toCampaignResponse(c *models.Campaign) *dto.GetCampaignResponse {
	return &dto.GetCampaignResponse{
		ID:             c.ID,
		UUID:           c.UUID.String(),
		Name:           c.Name,
		Status:         c.Status.String(),
		Pacing:         string(c.Pacing),
		TotalContacts:  c.TotalContacts,
		SentCount:      c.SentCount,
		DeliveredCount: c.DeliveredCount,
		FailedCount:    c.FailedCount,
		ScheduledFor:   c.ScheduledFor,
		StartedAt:      c.StartedAt,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
	}
}
