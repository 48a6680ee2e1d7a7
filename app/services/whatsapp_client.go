package services

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/models"
)

// SendResult is the backend's acknowledgment of one accepted message. The
// MessageID is the backend-assigned identifier later used to correlate
// delivery confirmations.
type SendResult struct {
	MessageID string
	Timestamp time.Time
}

// SessionStatus reports whether an authenticated backend session exists for
// a sending account.
type SessionStatus struct {
	Connected bool   `json:"connected"`
	PushName  string `json:"push_name,omitempty"`
}

// WhatsAppClient is the delivery backend capability: it sends one message to
// one recipient and reports session connectivity. Two interchangeable
// implementations exist (primary and fallback gateways); the orchestrator
// fails over between them within a single dispatch attempt.
//
// Send classifies every failure as a *DeliveryError. Recipient phones must
// already be normalized by utils.NormalizePhone.
type WhatsAppClient interface {
	Send(ctx context.Context, customerID uint, recipientPhone, body string) (*SendResult, error)
	Status(ctx context.Context, customerID uint) (*SessionStatus, error)
	Method() models.DeliveryMethod
}
