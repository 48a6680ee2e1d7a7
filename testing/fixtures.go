package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates a draft campaign for the given customer
func (tf *TestFixtures) CreateTestCampaign(customerID uint) (*models.Campaign, error) {
	campaign := &models.Campaign{
		CustomerID:  customerID,
		Name:        fmt.Sprintf("Test Campaign %d", rand.Intn(100000)),
		MessageBody: "Hello from the test campaign",
		Pacing:      models.PacingBalanced,
		Status:      models.CampaignStatusDraft,
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestContact creates one contact on the campaign with a unique phone
func (tf *TestFixtures) CreateTestContact(campaign *models.Campaign) (*models.Contact, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	contact := &models.Contact{
		CampaignID: campaign.ID,
		CustomerID: campaign.CustomerID,
		Phone:      fmt.Sprintf("918%s", randomDigits),
		Name:       "Test Contact",
	}

	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact: %w", err)
	}
	return contact, nil
}

// CreateTestMessage creates a message on the campaign in the given status
func (tf *TestFixtures) CreateTestMessage(campaign *models.Campaign, status models.MessageStatus) (*models.Message, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	message := &models.Message{
		CampaignID:     campaign.ID,
		RecipientPhone: fmt.Sprintf("918%s", randomDigits),
		MessageBody:    campaign.MessageBody,
		Status:         status,
		MaxRetries:     utils.DefaultMaxRetries,
	}

	switch status {
	case models.MessageStatusSent, models.MessageStatusDelivered:
		method := models.DeliveryMethodPrimary
		message.DeliveryMethod = &method
		providerID := fmt.Sprintf("prov-%s", randomDigits)
		message.ProviderMessageID = &providerID
		now := utils.UTCNow()
		message.SentAt = &now
		if status == models.MessageStatusDelivered {
			message.DeliveredAt = &now
		}
	case models.MessageStatusFailed:
		reason := "send failed"
		message.FailureReason = &reason
		now := utils.UTCNow()
		message.FailedAt = &now
	}

	if err := tf.DB.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return message, nil
}
