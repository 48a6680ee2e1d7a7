package models

import (
	"time"

	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// DeadLetter is a snapshot of a queue job that exhausted its retry budget.
// Rows are written exactly once per exhausted job and are retained for manual
// or automated re-drive; they are never retried automatically.
type DeadLetter struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	JobID          string         `gorm:"size:64;not null;uniqueIndex:uk_dead_letters_job_id" json:"job_id"`
	Queue          string         `gorm:"size:32;not null;index:idx_dead_letters_queue" json:"queue"`
	CampaignID     *uint          `gorm:"index:idx_dead_letters_campaign_id" json:"campaign_id,omitempty"`
	MessageID      *uint          `gorm:"index:idx_dead_letters_message_id" json:"message_id,omitempty"`
	CustomerID     uint           `gorm:"not null" json:"customer_id"`
	RecipientPhone string         `gorm:"size:20" json:"recipient_phone"`
	MessageBody    string         `gorm:"type:text" json:"message_body"`
	Pacing         PacingPolicy   `gorm:"type:pacing_policy" json:"pacing"`
	MethodHint     DeliveryMethod `gorm:"type:delivery_method" json:"method_hint"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	FailureReason  string         `gorm:"type:text;not null" json:"failure_reason"`
	RedrivenAt     *time.Time     `json:"redriven_at,omitempty"`
	CreatedAt      time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_dead_letters_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (DeadLetter) TableName() string {
	return "dead_letters"
}

// BeforeCreate is called before creating a new record
func (d *DeadLetter) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	return nil
}

// DeadLetterFilter provides filter fields for repository queries
type DeadLetterFilter struct {
	ID         *uint
	JobID      *string
	Queue      *string
	CampaignID *uint
	Redriven   *bool
}
