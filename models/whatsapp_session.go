package models

import (
	"time"

	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// WhatsAppSession tracks one authenticated delivery-backend session per
// customer and backend. The session registry owns these rows; nothing else
// writes them.
type WhatsAppSession struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CustomerID  uint           `gorm:"not null;uniqueIndex:uk_whatsapp_sessions_customer_backend" json:"customer_id"`
	Backend     DeliveryMethod `gorm:"type:delivery_method;not null;uniqueIndex:uk_whatsapp_sessions_customer_backend" json:"backend"`
	SessionName string         `gorm:"size:128;not null" json:"session_name"`
	IsActive    bool           `gorm:"not null;default:false;index:idx_whatsapp_sessions_is_active" json:"is_active"`
	LastUsedAt  *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (WhatsAppSession) TableName() string {
	return "whatsapp_sessions"
}

// BeforeCreate is called before creating a new record
func (s *WhatsAppSession) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = utils.UTCNow()
	}
	return nil
}

// WhatsAppSessionFilter provides filter fields for repository queries
type WhatsAppSessionFilter struct {
	ID         *uint
	CustomerID *uint
	Backend    *DeliveryMethod
	IsActive   *bool
}
