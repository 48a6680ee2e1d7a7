package dto

import "time"

// EnqueueMessageRequest represents the request to queue one ad-hoc send
type EnqueueMessageRequest struct {
	CustomerID uint   `json:"-"`
	CampaignID uint   `json:"campaign_id,omitempty"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	Message    string `json:"message" validate:"required,min=1,max=4096"`
	Pacing     string `json:"pacing,omitempty" validate:"omitempty,oneof=fast balanced safe"`
}

// EnqueueCampaignRequest represents the request to queue a whole-campaign send
type EnqueueCampaignRequest struct {
	CustomerID uint  `json:"-"`
	CampaignID uint  `json:"campaign_id" validate:"required"`
	DelayMs    int64 `json:"delay_ms,omitempty" validate:"omitempty,min=0,max=300000"`
}

// EnqueueResponse represents the acknowledgment of a queued job
type EnqueueResponse struct {
	JobID    string `json:"job_id"`
	Queue    string `json:"queue"`
	State    string `json:"state"`
	QueuedAt string `json:"queued_at"`
}

// JobStatusResponse represents the queue-side view of one job
type JobStatusResponse struct {
	JobID      string    `json:"job_id"`
	Queue      string    `json:"queue"`
	State      string    `json:"state"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`
	CampaignID uint      `json:"campaign_id,omitempty"`
	MessageID  uint      `json:"message_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueStatsEntry represents one queue's depth and outcome counters
type QueueStatsEntry struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Retried    int64 `json:"retried"`
	Exhausted  int64 `json:"exhausted"`
}

// QueueStatsResponse represents the stats of both delivery queues
type QueueStatsResponse struct {
	Messages  QueueStatsEntry `json:"messages"`
	Campaigns QueueStatsEntry `json:"campaigns"`
}
