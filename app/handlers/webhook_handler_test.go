package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/poller"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookTestSecret = "test-webhook-secret-123"

// recordingMessageRepo is an in-memory MessageRepository that counts every
// call, so tests can assert a rejected request touched nothing.
type recordingMessageRepo struct {
	messages    map[uint]*models.Message
	nextID      uint
	reads       int
	transitions int
}

func newRecordingMessageRepo() *recordingMessageRepo {
	return &recordingMessageRepo{messages: make(map[uint]*models.Message), nextID: 1}
}

func (r *recordingMessageRepo) add(m *models.Message) *models.Message {
	m.ID = r.nextID
	r.nextID++
	r.messages[m.ID] = m
	return m
}

func (r *recordingMessageRepo) ByID(ctx context.Context, id uint) (*models.Message, error) {
	r.reads++
	return r.messages[id], nil
}

func (r *recordingMessageRepo) Save(ctx context.Context, message *models.Message) error {
	r.transitions++
	r.add(message)
	return nil
}

func (r *recordingMessageRepo) SaveBatch(ctx context.Context, messages []*models.Message) error {
	r.transitions++
	for _, m := range messages {
		r.add(m)
	}
	return nil
}

func (r *recordingMessageRepo) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	r.reads++
	var out []*models.Message
	for _, m := range r.messages {
		if filter.ProviderMessageID != nil {
			if m.ProviderMessageID == nil || *m.ProviderMessageID != *filter.ProviderMessageID {
				continue
			}
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *recordingMessageRepo) Transition(ctx context.Context, id uint, from []models.MessageStatus, to models.MessageStatus, fields repository.MessageTransition) (bool, error) {
	r.transitions++
	m, ok := r.messages[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if m.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	m.Status = to
	if fields.DeliveredAt != nil {
		m.DeliveredAt = fields.DeliveredAt
	}
	if fields.FailureReason != nil {
		m.FailureReason = fields.FailureReason
	}
	if fields.FailedAt != nil {
		m.FailedAt = fields.FailedAt
	}
	return true, nil
}

func (r *recordingMessageRepo) CountsByCampaign(ctx context.Context, campaignID uint) (*models.CampaignMessageCounts, error) {
	r.reads++
	return &models.CampaignMessageCounts{}, nil
}

func (r *recordingMessageRepo) ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Message, error) {
	r.reads++
	return nil, nil
}

func (r *recordingMessageRepo) ListUnconfirmedSent(ctx context.Context, sentAfter, sentBefore time.Time, limit int) ([]*models.Message, error) {
	r.reads++
	return nil, nil
}

func (r *recordingMessageRepo) ListRetryable(ctx context.Context, limit int) ([]*models.Message, error) {
	r.reads++
	return nil, nil
}

// recordingCampaignRepo counts counter recomputes and campaign writes
type recordingCampaignRepo struct {
	recomputes int
	writes     int
}

func (r *recordingCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return nil, nil
}

func (r *recordingCampaignRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return nil, nil
}

func (r *recordingCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	r.writes++
	return nil
}

func (r *recordingCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	r.writes++
	return nil
}

func (r *recordingCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *recordingCampaignRepo) ListScheduled(ctx context.Context) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *recordingCampaignRepo) UpdateStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	r.writes++
	return false, nil
}

func (r *recordingCampaignRepo) RecomputeCounters(ctx context.Context, id uint) (*models.CampaignMessageCounts, error) {
	r.recomputes++
	return &models.CampaignMessageCounts{}, nil
}

type webhookFixture struct {
	app          *fiber.App
	messageRepo  *recordingMessageRepo
	campaignRepo *recordingCampaignRepo
}

func newWebhookFixture() *webhookFixture {
	messageRepo := newRecordingMessageRepo()
	campaignRepo := &recordingCampaignRepo{}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	reconciler := poller.NewReconciler(messageRepo, campaignRepo, logger)
	handler := NewWebhookHandler(reconciler, config.WebhookConfig{Secret: webhookTestSecret})

	app := fiber.New()
	app.Post("/api/v1/webhooks/delivery", handler.DeliveryConfirmation)

	return &webhookFixture{app: app, messageRepo: messageRepo, campaignRepo: campaignRepo}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// webhookResponse mirrors dto.APIResponse with the error detail typed, so
// assertions can reach the error code
type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func postConfirmation(t *testing.T, app *fiber.App, body []byte, signature string) (int, webhookResponse) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/webhooks/delivery", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed webhookResponse
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp.StatusCode, parsed
}

func TestDeliveryConfirmationAuth(t *testing.T) {
	body := []byte(`{"provider_message_id":"prov-1","status":"delivered"}`)

	t.Run("tampered body is rejected before any repository access", func(t *testing.T) {
		f := newWebhookFixture()
		tampered := []byte(`{"provider_message_id":"prov-1","status":"failed"}`)

		// signature computed over the original body, sent with the tampered one
		status, resp := postConfirmation(t, f.app, tampered, signBody(webhookTestSecret, body))

		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.False(t, resp.Success)
		assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
		assert.Zero(t, f.messageRepo.reads)
		assert.Zero(t, f.messageRepo.transitions)
		assert.Zero(t, f.campaignRepo.recomputes)
		assert.Zero(t, f.campaignRepo.writes)
	})

	t.Run("missing signature is rejected without touching the repositories", func(t *testing.T) {
		f := newWebhookFixture()

		status, resp := postConfirmation(t, f.app, body, "")

		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "MISSING_SIGNATURE", resp.Error.Code)
		assert.Zero(t, f.messageRepo.reads)
		assert.Zero(t, f.messageRepo.transitions)
		assert.Zero(t, f.campaignRepo.recomputes)
	})

	t.Run("signature under the wrong secret is rejected", func(t *testing.T) {
		f := newWebhookFixture()

		status, resp := postConfirmation(t, f.app, body, signBody("other-secret", body))

		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, "INVALID_SIGNATURE", resp.Error.Code)
		assert.Zero(t, f.messageRepo.reads)
		assert.Zero(t, f.messageRepo.transitions)
	})

	t.Run("unknown status with a valid signature is a validation error", func(t *testing.T) {
		f := newWebhookFixture()
		payload := []byte(`{"provider_message_id":"prov-1","status":"exploded"}`)

		status, resp := postConfirmation(t, f.app, payload, signBody(webhookTestSecret, payload))

		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Zero(t, f.messageRepo.transitions)
	})

	t.Run("valid signature applies the confirmation", func(t *testing.T) {
		f := newWebhookFixture()
		method := models.DeliveryMethodPrimary
		providerID := "prov-1"
		sentAt := utils.UTCNow().Add(-time.Hour)
		message := f.messageRepo.add(&models.Message{
			CampaignID:        42,
			RecipientPhone:    "919876543210",
			MessageBody:       "hi",
			Status:            models.MessageStatusSent,
			DeliveryMethod:    &method,
			ProviderMessageID: &providerID,
			SentAt:            &sentAt,
		})

		status, resp := postConfirmation(t, f.app, body, signBody(webhookTestSecret, body))

		assert.Equal(t, fiber.StatusOK, status)
		assert.True(t, resp.Success)
		assert.Equal(t, models.MessageStatusDelivered, f.messageRepo.messages[message.ID].Status)
		assert.Equal(t, 1, f.campaignRepo.recomputes)
	})
}
