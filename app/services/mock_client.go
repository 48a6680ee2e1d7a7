package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
)

// MockWhatsAppClient implements WhatsAppClient for testing
type MockWhatsAppClient struct {
	mu sync.Mutex

	method    models.DeliveryMethod
	connected bool

	// FailWith, when set, classifies every Send as this error code.
	FailWith DeliveryErrorCode
	// FailFirst fails the first N sends before succeeding.
	FailFirst int

	SentMessages []MockSentMessage
}

// MockSentMessage records one mock send
type MockSentMessage struct {
	CustomerID uint
	Recipient  string
	Body       string
}

// NewMockWhatsAppClient creates a connected mock client for the given method
func NewMockWhatsAppClient(method models.DeliveryMethod) *MockWhatsAppClient {
	return &MockWhatsAppClient{method: method, connected: true}
}

// Method returns which delivery method this client represents
func (m *MockWhatsAppClient) Method() models.DeliveryMethod {
	return m.method
}

// SetConnected toggles the mock session state
func (m *MockWhatsAppClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// Send records a mock send or returns the configured failure
func (m *MockWhatsAppClient) Send(ctx context.Context, customerID uint, recipientPhone, body string) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, NewDeliveryError(DeliveryErrNotConnected, string(m.method), fmt.Errorf("mock session not connected"))
	}
	if m.FailWith != "" {
		return nil, NewDeliveryError(m.FailWith, string(m.method), fmt.Errorf("mock failure"))
	}
	if m.FailFirst > 0 {
		m.FailFirst--
		return nil, NewDeliveryError(DeliveryErrTransient, string(m.method), fmt.Errorf("mock transient failure"))
	}

	m.SentMessages = append(m.SentMessages, MockSentMessage{
		CustomerID: customerID,
		Recipient:  recipientPhone,
		Body:       body,
	})
	return &SendResult{
		MessageID: fmt.Sprintf("%s_%s", m.method, uuid.NewString()),
		Timestamp: utils.UTCNow(),
	}, nil
}

// Status reports the mock session state
func (m *MockWhatsAppClient) Status(ctx context.Context, customerID uint) (*SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &SessionStatus{Connected: m.connected}, nil
}

// Sent returns a copy of the recorded sends
func (m *MockWhatsAppClient) Sent() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
