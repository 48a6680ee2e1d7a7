package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageStatus enumerates the delivery state of a single outbound message.
//
// Transitions are one-directional: pending -> sent -> delivered, or
// pending -> failed. The only backwards edge is the explicit retry path
// failed -> pending, bounded by MaxRetries.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusBounced   MessageStatus = "bounced"
)

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusDelivered,
		MessageStatusFailed, MessageStatusBounced:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MessageStatus
func (s *MessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MessageStatus(v)
	case []byte:
		*s = MessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageStatus
func (s MessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MessageStatus: %s", s)
	}
	return string(s), nil
}

// DeliveryMethod identifies which backend adapter carried a message
type DeliveryMethod string

const (
	DeliveryMethodPrimary  DeliveryMethod = "primary"
	DeliveryMethodFallback DeliveryMethod = "fallback"
)

// Valid checks if the delivery method is valid
func (m DeliveryMethod) Valid() bool {
	return m == DeliveryMethodPrimary || m == DeliveryMethodFallback
}

// Other returns the alternate delivery method, used when re-driving failed
// messages with the backends swapped.
func (m DeliveryMethod) Other() DeliveryMethod {
	if m == DeliveryMethodPrimary {
		return DeliveryMethodFallback
	}
	return DeliveryMethodPrimary
}

// Scan implements the sql.Scanner interface for DeliveryMethod
func (m *DeliveryMethod) Scan(value any) error {
	if value == nil {
		*m = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*m = DeliveryMethod(v)
	case []byte:
		*m = DeliveryMethod(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryMethod", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryMethod
func (m DeliveryMethod) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid DeliveryMethod: %s", m)
	}
	return string(m), nil
}

// Message is the single source of truth for the delivery state of one
// recipient within one campaign. It is mutated only by the delivery
// orchestrator and the status poller; every status write is guarded by a
// current-status precondition so out-of-order completions never regress it.
type Message struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_messages_uuid" json:"uuid"`
	CampaignID        uint            `gorm:"not null;index:idx_messages_campaign_id" json:"campaign_id"`
	RecipientPhone    string          `gorm:"size:20;not null;index:idx_messages_recipient_phone" json:"recipient_phone"`
	MessageBody       string          `gorm:"type:text;not null" json:"message_body"`
	DeliveryMethod    *DeliveryMethod `gorm:"type:delivery_method" json:"delivery_method,omitempty"`
	Status            MessageStatus   `gorm:"type:message_status;not null;default:'pending';index:idx_messages_status" json:"status"`
	RetryCount        int             `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries        int             `gorm:"not null;default:3" json:"max_retries"`
	ProviderMessageID *string         `gorm:"size:128;index:idx_messages_provider_message_id" json:"provider_message_id,omitempty"`
	FailureReason     *string         `gorm:"type:text" json:"failure_reason,omitempty"`
	SentAt            *time.Time      `gorm:"index:idx_messages_sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	FailedAt          *time.Time      `json:"failed_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate is called before creating a new record
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MessageStatusPending
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = 3
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// CanRetry reports whether the message still has retry budget left
func (m *Message) CanRetry() bool {
	return m.Status == MessageStatusFailed && m.RetryCount < m.MaxRetries
}

// MessageFilter provides filter fields for repository queries
type MessageFilter struct {
	ID                *uint
	UUID              *uuid.UUID
	CampaignID        *uint
	RecipientPhone    *string
	ProviderMessageID *string
	Status            *MessageStatus
	SentAfter         *time.Time
	SentBefore        *time.Time
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}

// CampaignMessageCounts is the per-status aggregation over one campaign's
// messages, used to recompute the campaign's cached counters.
type CampaignMessageCounts struct {
	Pending   int64
	Sent      int64
	Delivered int64
	Failed    int64
	Bounced   int64
}

// SentCount folds the aggregation into the campaign's sent counter: a
// delivered message was necessarily sent first.
func (c CampaignMessageCounts) SentCount() int {
	return int(c.Sent + c.Delivered)
}

// FailedCount folds bounced into failed for the campaign counter.
func (c CampaignMessageCounts) FailedCount() int {
	return int(c.Failed + c.Bounced)
}
