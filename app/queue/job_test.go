package queue

import (
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageJob(t *testing.T) {
	job := NewMessageJob(7, 3, 11, "919876543210", "hello", models.PacingFast)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueMessages, job.Queue)
	assert.Equal(t, uint(7), job.CustomerID)
	assert.Equal(t, uint(3), job.CampaignID)
	assert.Equal(t, uint(11), job.MessageID)
	assert.Equal(t, "919876543210", job.RecipientPhone)
	assert.Equal(t, models.PacingFast, job.Pacing)
	assert.Equal(t, models.DeliveryMethodPrimary, job.MethodHint)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, utils.DefaultMaxRetries, job.MaxRetries)
	assert.Equal(t, JobStateQueued, job.State)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestNewCampaignJob(t *testing.T) {
	job := NewCampaignJob(7, 3, 1500)

	assert.Equal(t, QueueCampaigns, job.Queue)
	assert.Equal(t, int64(1500), job.DelayMs)
	assert.Zero(t, job.MessageID)
	assert.Equal(t, JobStateQueued, job.State)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		base     time.Duration
		expected time.Duration
	}{
		{"first retry", 0, 2 * time.Second, 2 * time.Second},
		{"second retry", 1, 2 * time.Second, 4 * time.Second},
		{"third retry", 2, 2 * time.Second, 8 * time.Second},
		{"custom base", 1, 500 * time.Millisecond, time.Second},
		{"zero base falls back to default", 0, 0, utils.RetryBaseDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{Attempts: tt.attempts}
			assert.Equal(t, tt.expected, job.RetryBackoff(tt.base))
		})
	}
}

func TestJobMapRoundTrip(t *testing.T) {
	job := NewMessageJob(7, 3, 11, "919876543210", "hello there", models.PacingSafe)
	job.Attempts = 2
	job.MethodHint = models.DeliveryMethodFallback
	job.State = JobStateRetrying

	restored, err := jobFromMap(stringify(job.toMap()))
	require.NoError(t, err)

	assert.Equal(t, job.ID, restored.ID)
	assert.Equal(t, job.Queue, restored.Queue)
	assert.Equal(t, job.CampaignID, restored.CampaignID)
	assert.Equal(t, job.MessageID, restored.MessageID)
	assert.Equal(t, job.CustomerID, restored.CustomerID)
	assert.Equal(t, job.RecipientPhone, restored.RecipientPhone)
	assert.Equal(t, job.Body, restored.Body)
	assert.Equal(t, job.Pacing, restored.Pacing)
	assert.Equal(t, job.MethodHint, restored.MethodHint)
	assert.Equal(t, job.Attempts, restored.Attempts)
	assert.Equal(t, job.MaxRetries, restored.MaxRetries)
	assert.Equal(t, job.State, restored.State)
	assert.True(t, job.EnqueuedAt.Equal(restored.EnqueuedAt))
}

func TestJobFromMapMissingID(t *testing.T) {
	_, err := jobFromMap(map[string]string{"queue": "messages"})
	assert.Error(t, err)
}

func TestPacingDelay(t *testing.T) {
	tests := []struct {
		name   string
		policy models.PacingPolicy
		min    time.Duration
		max    time.Duration
	}{
		{"fast", models.PacingFast, 2 * time.Second, 5 * time.Second},
		{"balanced", models.PacingBalanced, 5 * time.Second, 10 * time.Second},
		{"safe", models.PacingSafe, 10 * time.Second, 30 * time.Second},
		{"unknown falls back to balanced", models.PacingPolicy("turbo"), 5 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				d := PacingDelay(tt.policy)
				assert.GreaterOrEqual(t, d, tt.min)
				assert.Less(t, d, tt.max)
			}
		})
	}
}

// stringify mirrors how Redis hands hash fields back to the store
func stringify(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v.(string)
	}
	return out
}
