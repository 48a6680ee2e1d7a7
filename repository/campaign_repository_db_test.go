package repository_test

import (
	"context"
	"testing"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	testingutil "github.com/amirphl/Susanoo/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecomputeCounters exercises the counter reconciliation against real
// message rows: the folding rules and the idempotence of re-running it.
func TestRecomputeCounters(t *testing.T) {
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

	campaign, err := fixtures.CreateTestCampaign(7)
	require.NoError(t, err)

	seed := []struct {
		status models.MessageStatus
		n      int
	}{
		{models.MessageStatusPending, 1},
		{models.MessageStatusSent, 2},
		{models.MessageStatusDelivered, 3},
		{models.MessageStatusFailed, 1},
		{models.MessageStatusBounced, 1},
	}
	for _, s := range seed {
		for i := 0; i < s.n; i++ {
			_, err := fixtures.CreateTestMessage(campaign, s.status)
			require.NoError(t, err)
		}
	}

	t.Run("folds delivered into sent and bounced into failed", func(t *testing.T) {
		counts, err := campaignRepo.RecomputeCounters(ctx, campaign.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(1), counts.Pending)
		assert.Equal(t, int64(2), counts.Sent)
		assert.Equal(t, int64(3), counts.Delivered)
		assert.Equal(t, int64(1), counts.Failed)
		assert.Equal(t, int64(1), counts.Bounced)

		row, err := campaignRepo.ByUUID(ctx, campaign.UUID)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, 5, row.SentCount) // sent + delivered
		assert.Equal(t, 3, row.DeliveredCount)
		assert.Equal(t, 2, row.FailedCount) // failed + bounced
	})

	t.Run("recomputing again changes nothing", func(t *testing.T) {
		first, err := campaignRepo.RecomputeCounters(ctx, campaign.ID)
		require.NoError(t, err)
		second, err := campaignRepo.RecomputeCounters(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		row, err := campaignRepo.ByUUID(ctx, campaign.UUID)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, 5, row.SentCount)
		assert.Equal(t, 3, row.DeliveredCount)
		assert.Equal(t, 2, row.FailedCount)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := campaignRepo.RecomputeCounters(ctx, 999999)
		assert.Error(t, err)
	})
}
