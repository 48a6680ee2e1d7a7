package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/repository"
	testingutil "github.com/amirphl/Susanoo/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestImportContactsEndToEnd covers the transactional import path: the
// duplicate snapshot, the batch insert, and the contact counter update.
func TestImportContactsEndToEnd(t *testing.T) {
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
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	contactRepo := repository.NewContactRepository(testDB.DB)

	campaignFlow := NewCampaignFlow(campaignRepo, testDB.DB)
	importFlow := NewContactImportFlow(campaignRepo, contactRepo, testDB.DB)

	created, err := campaignFlow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
		CustomerID: 7,
		Name:       "diwali wave",
		Message:    "happy diwali",
		Pacing:     "safe",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, "draft", created.Status)

	t.Run("every row lands in exactly one counter", func(t *testing.T) {
		resp, err := importFlow.ImportContacts(ctx, &dto.ImportContactsRequest{
			CustomerID: 7,
			CampaignID: created.ID,
			Contacts: []dto.ImportContactEntry{
				{Phone: "919876543210", Name: "Asha"},
				{Phone: "+91 98765 43210"}, // same number after normalization
				{Phone: "919876543211"},
				{Phone: "12345"}, // too short
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, resp.Admitted)
		assert.Equal(t, 1, resp.SkippedDuplicate)
		assert.Equal(t, 1, resp.RejectedInvalid)
		assert.Equal(t, []string{"12345"}, resp.InvalidPhones)
		assert.Equal(t, 2, resp.TotalContacts)
	})

	t.Run("duplicates are skipped across batches", func(t *testing.T) {
		resp, err := importFlow.ImportContacts(ctx, &dto.ImportContactsRequest{
			CustomerID: 7,
			CampaignID: created.ID,
			Contacts: []dto.ImportContactEntry{
				{Phone: "919876543210"},
				{Phone: "919876543212"},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, resp.Admitted)
		assert.Equal(t, 1, resp.SkippedDuplicate)
		assert.Equal(t, 3, resp.TotalContacts)
	})

	t.Run("campaign counter reflects the imports", func(t *testing.T) {
		campaign, err := campaignRepo.ByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, campaign)
		assert.Equal(t, 3, campaign.TotalContacts)
	})

	t.Run("xlsx rows import through the same pipeline", func(t *testing.T) {
		resp, err := importFlow.ImportContactsFromXLSX(ctx, 7, created.ID, buildWorkbook(t, [][]string{
			{"phone", "name", "tags"},
			{"919876543213", "Ravi", "vip"},
			{"919876543210", "Asha", ""}, // already imported
		}))
		require.NoError(t, err)

		assert.Equal(t, 1, resp.Admitted)
		assert.Equal(t, 1, resp.SkippedDuplicate)
		assert.Equal(t, 4, resp.TotalContacts)
	})
}
