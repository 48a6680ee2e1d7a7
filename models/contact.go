package models

import (
	"time"

	"github.com/amirphl/Susanoo/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Contact is one recipient of a campaign. Contacts are created in bulk at
// import time and are immutable afterwards.
//
// The phone number is stored normalized (digits only, country-code prefixed)
// and is unique per owning customer across ALL of that customer's campaigns,
// so a number already messaged in one campaign is never admitted into another.
type Contact struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CampaignID uint           `gorm:"not null;index:idx_contacts_campaign_id" json:"campaign_id"`
	CustomerID uint           `gorm:"not null;uniqueIndex:uk_contacts_customer_phone" json:"customer_id"`
	Phone      string         `gorm:"size:20;not null;uniqueIndex:uk_contacts_customer_phone" json:"phone"`
	Name       string         `gorm:"size:255" json:"name"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	Metadata   *string        `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (Contact) TableName() string {
	return "contacts"
}

// BeforeCreate is called before creating a new record
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID         *uint
	CampaignID *uint
	CustomerID *uint
	Phone      *string
}
