package dto

import "time"

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	CustomerID  uint       `json:"-"`
	Name        string     `json:"name" validate:"required,min=1,max=255"`
	Message     string     `json:"message" validate:"required,min=1,max=4096"`
	Pacing      string     `json:"pacing,omitempty" validate:"omitempty,oneof=fast balanced safe"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse represents the response to create a new campaign
type CreateCampaignResponse struct {
	Message   string `json:"message"`
	ID        uint   `json:"id"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetCampaignResponse represents one campaign with its delivery counters
type GetCampaignResponse struct {
	ID             uint       `json:"id"`
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	Pacing         string     `json:"pacing"`
	TotalContacts  int        `json:"total_contacts"`
	SentCount      int        `json:"sent_count"`
	DeliveredCount int        `json:"delivered_count"`
	FailedCount    int        `json:"failed_count"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScheduleCampaignRequest represents the request to schedule a campaign
type ScheduleCampaignRequest struct {
	CustomerID  uint      `json:"-"`
	CampaignID  uint      `json:"-"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// ScheduleCampaignResponse represents the schedule acknowledgment
type ScheduleCampaignResponse struct {
	Message      string `json:"message"`
	ScheduledFor string `json:"scheduled_for"`
}
