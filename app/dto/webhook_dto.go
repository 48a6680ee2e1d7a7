package dto

import "time"

// DeliveryWebhookRequest represents an inbound delivery confirmation from a
// backend gateway. The request body is authenticated by an HMAC signature
// header before it is parsed.
type DeliveryWebhookRequest struct {
	ProviderMessageID string     `json:"provider_message_id" validate:"required,max=128"`
	Status            string     `json:"status" validate:"required,oneof=delivered read failed pending"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// SessionStatusResponse represents one account's backend session states
type SessionStatusResponse struct {
	CustomerID uint                     `json:"customer_id"`
	Backends   map[string]BackendStatus `json:"backends"`
}

// BackendStatus represents connectivity of one delivery backend
type BackendStatus struct {
	Connected bool   `json:"connected"`
	PushName  string `json:"push_name,omitempty"`
}
