package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// PacingPolicy names the randomized per-message delay range applied between sends
type PacingPolicy string

const (
	PacingFast     PacingPolicy = "fast"
	PacingBalanced PacingPolicy = "balanced"
	PacingSafe     PacingPolicy = "safe"
)

// Valid checks if the pacing policy is valid
func (p PacingPolicy) Valid() bool {
	switch p {
	case PacingFast, PacingBalanced, PacingSafe:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for PacingPolicy
func (p *PacingPolicy) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = PacingPolicy(v)
	case []byte:
		*p = PacingPolicy(string(v))
	default:
		return fmt.Errorf("cannot scan %T into PacingPolicy", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for PacingPolicy
func (p PacingPolicy) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid PacingPolicy: %s", p)
	}
	return string(p), nil
}

// Campaign represents a bulk-send unit: one message template and many contacts.
//
// The denormalized counters (SentCount, DeliveredCount, FailedCount) are a
// cache over the messages table; they must always be re-derivable from it and
// are never authoritative.
type Campaign struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	CustomerID   uint           `gorm:"not null;index:idx_campaigns_customer_id" json:"customer_id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	MessageBody  string         `gorm:"type:text;not null" json:"message_body"`
	Pacing       PacingPolicy   `gorm:"type:pacing_policy;not null;default:'balanced'" json:"pacing"`
	Status       CampaignStatus `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	ScheduledFor *time.Time     `gorm:"index:idx_campaigns_scheduled_for" json:"scheduled_for,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`

	TotalContacts  int `gorm:"not null;default:0" json:"total_contacts"`
	SentCount      int `gorm:"not null;default:0" json:"sent_count"`
	DeliveredCount int `gorm:"not null;default:0" json:"delivered_count"`
	FailedCount    int `gorm:"not null;default:0" json:"failed_count"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Contacts []Contact `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"contacts,omitempty"`
	Messages []Message `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.Pacing == "" {
		c.Pacing = PacingBalanced
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// IsSchedulable checks if the campaign can be scheduled for a future send
func (c *Campaign) IsSchedulable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// CampaignFilter provides filter fields for repository queries
type CampaignFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CustomerID    *uint
	Status        *CampaignStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
