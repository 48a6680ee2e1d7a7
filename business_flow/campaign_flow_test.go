package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCampaignRepo backs the lookup paths; write paths go through the
// DB-backed tests instead
type fakeCampaignRepo struct {
	campaigns map[uint]*models.Campaign
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
	for _, c := range campaigns {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return r.campaigns[id], nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	for _, c := range r.campaigns {
		if c.UUID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	r.campaigns[campaign.ID] = campaign
	return nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			continue
		}
		out = append(out, c)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListScheduled(ctx context.Context) ([]*models.Campaign, error) {
	return nil, nil
}

func (r *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	return false, nil
}

func (r *fakeCampaignRepo) RecomputeCounters(ctx context.Context, id uint) (*models.CampaignMessageCounts, error) {
	return &models.CampaignMessageCounts{}, nil
}

func draftCampaign(id, customerID uint) *models.Campaign {
	return &models.Campaign{
		ID:          id,
		UUID:        uuid.New(),
		CustomerID:  customerID,
		Name:        "launch wave",
		MessageBody: "hello",
		Pacing:      models.PacingBalanced,
		Status:      models.CampaignStatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	flow := NewCampaignFlow(newFakeCampaignRepo(), nil)

	tests := []struct {
		name    string
		req     *dto.CreateCampaignRequest
		wantErr error
	}{
		{
			name:    "empty name",
			req:     &dto.CreateCampaignRequest{CustomerID: 1, Name: "   ", Message: "hi"},
			wantErr: ErrCampaignNameRequired,
		},
		{
			name:    "empty message",
			req:     &dto.CreateCampaignRequest{CustomerID: 1, Name: "wave", Message: ""},
			wantErr: ErrCampaignMessageRequired,
		},
		{
			name:    "unknown pacing policy",
			req:     &dto.CreateCampaignRequest{CustomerID: 1, Name: "wave", Message: "hi", Pacing: "turbo"},
			wantErr: ErrInvalidPacingPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.CreateCampaign(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var businessErr *BusinessError
			require.ErrorAs(t, err, &businessErr)
			assert.Equal(t, "CAMPAIGN_VALIDATION_FAILED", businessErr.Code)
		})
	}
}

func TestGetCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the campaign with its counters", func(t *testing.T) {
		campaign := draftCampaign(1, 1)
		campaign.TotalContacts = 120
		campaign.SentCount = 80
		campaign.DeliveredCount = 75
		campaign.FailedCount = 5

		flow := NewCampaignFlow(newFakeCampaignRepo(campaign), nil)
		resp, err := flow.GetCampaign(ctx, 1, 1)
		require.NoError(t, err)

		assert.Equal(t, campaign.UUID.String(), resp.UUID)
		assert.Equal(t, "draft", resp.Status)
		assert.Equal(t, 120, resp.TotalContacts)
		assert.Equal(t, 80, resp.SentCount)
		assert.Equal(t, 75, resp.DeliveredCount)
		assert.Equal(t, 5, resp.FailedCount)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		flow := NewCampaignFlow(newFakeCampaignRepo(), nil)
		_, err := flow.GetCampaign(ctx, 1, 42)
		assert.True(t, IsCampaignNotFound(err))
	})

	t.Run("campaign of another account", func(t *testing.T) {
		flow := NewCampaignFlow(newFakeCampaignRepo(draftCampaign(1, 7)), nil)
		_, err := flow.GetCampaign(ctx, 1, 1)
		assert.True(t, IsCampaignAccessDenied(err))
	})
}

func TestListCampaigns(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid pagination", func(t *testing.T) {
		flow := NewCampaignFlow(newFakeCampaignRepo(), nil)

		_, err := flow.ListCampaigns(ctx, 1, 0, 20)
		assert.ErrorIs(t, err, ErrInvalidPage)

		_, err = flow.ListCampaigns(ctx, 1, 1, 0)
		assert.ErrorIs(t, err, ErrInvalidPageSize)

		_, err = flow.ListCampaigns(ctx, 1, 1, 500)
		assert.ErrorIs(t, err, ErrInvalidPageSize)
	})

	t.Run("returns only the customer's campaigns", func(t *testing.T) {
		flow := NewCampaignFlow(newFakeCampaignRepo(
			draftCampaign(1, 1),
			draftCampaign(2, 1),
			draftCampaign(3, 9),
		), nil)

		campaigns, err := flow.ListCampaigns(ctx, 1, 1, 20)
		require.NoError(t, err)
		assert.Len(t, campaigns, 2)
	})
}
