package queue

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	testingutil "github.com/amirphl/Susanoo/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExhaustion exercises the dead-letter path against a real database, so
// the atomicity of the message transition and the quarantine write is covered.
func TestExhaustion(t *testing.T) {
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	defer func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	ctx := context.Background()
	fixtures := testingutil.NewTestFixtures(testDB)

	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	messageRepo := repository.NewMessageRepository(testDB.DB)
	deadLetterRepo := repository.NewDeadLetterRepository(testDB.DB)

	newOrch := func(store Store) *Orchestrator {
		primary := services.NewMockWhatsAppClient(models.DeliveryMethodPrimary)
		fallback := services.NewMockWhatsAppClient(models.DeliveryMethodFallback)
		return NewOrchestrator(
			store,
			testDB.DB,
			campaignRepo,
			repository.NewContactRepository(testDB.DB),
			messageRepo,
			deadLetterRepo,
			services.NewSessionRegistry(repository.NewWhatsAppSessionRepository(testDB.DB), primary, fallback),
			log.New(os.Stderr, "", log.LstdFlags),
			Options{},
			primary,
			fallback,
		)
	}

	t.Run("budget exhaustion fails the message and quarantines the job", func(t *testing.T) {
		campaign, err := fixtures.CreateTestCampaign(7)
		require.NoError(t, err)
		message, err := fixtures.CreateTestMessage(campaign, models.MessageStatusPending)
		require.NoError(t, err)

		store := newMemStore()
		orch := newOrch(store)

		job := NewMessageJob(7, campaign.ID, message.ID, message.RecipientPhone, message.MessageBody, models.PacingFast)
		job.Attempts = job.MaxRetries - 1 // budget already spent on prior attempts

		transient := services.NewDeliveryError(services.DeliveryErrTransient, "primary", assert.AnError)
		orch.handleMessageFailure(ctx, job, transient)

		assert.Equal(t, job.MaxRetries, job.Attempts)

		state, ok := store.completedState(job.ID)
		require.True(t, ok)
		assert.Equal(t, JobStateExhausted, state)

		reloaded, err := messageRepo.ByID(ctx, message.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusFailed, reloaded.Status)
		require.NotNil(t, reloaded.FailureReason)
		assert.NotNil(t, reloaded.FailedAt)

		entry, err := deadLetterRepo.ByJobID(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, job.MaxRetries, entry.Attempts)
		require.NotNil(t, entry.MessageID)
		assert.Equal(t, message.ID, *entry.MessageID)
		assert.Nil(t, entry.RedrivenAt)
	})

	t.Run("invalid recipient bounces immediately without spending the budget", func(t *testing.T) {
		campaign, err := fixtures.CreateTestCampaign(7)
		require.NoError(t, err)
		message, err := fixtures.CreateTestMessage(campaign, models.MessageStatusPending)
		require.NoError(t, err)

		store := newMemStore()
		orch := newOrch(store)

		job := NewMessageJob(7, campaign.ID, message.ID, message.RecipientPhone, message.MessageBody, models.PacingFast)

		invalid := services.NewDeliveryError(services.DeliveryErrInvalidRecipient, "primary", assert.AnError)
		orch.handleMessageFailure(ctx, job, invalid)

		state, ok := store.completedState(job.ID)
		require.True(t, ok)
		assert.Equal(t, JobStateExhausted, state)
		assert.Empty(t, store.retryRecords())

		reloaded, err := messageRepo.ByID(ctx, message.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusBounced, reloaded.Status)

		entry, err := deadLetterRepo.ByJobID(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
	})

	t.Run("exhausted message is invisible to the retry sweep scan", func(t *testing.T) {
		campaign, err := fixtures.CreateTestCampaign(7)
		require.NoError(t, err)
		message, err := fixtures.CreateTestMessage(campaign, models.MessageStatusPending)
		require.NoError(t, err)

		store := newMemStore()
		orch := newOrch(store)

		job := NewMessageJob(7, campaign.ID, message.ID, message.RecipientPhone, message.MessageBody, models.PacingFast)

		invalid := services.NewDeliveryError(services.DeliveryErrInvalidRecipient, "primary", assert.AnError)
		orch.handleMessageFailure(ctx, job, invalid)

		// bounced rows must never be re-driven
		retryable, err := messageRepo.ListRetryable(ctx, 100)
		require.NoError(t, err)
		for _, m := range retryable {
			assert.NotEqual(t, message.ID, m.ID)
		}
	})
}
