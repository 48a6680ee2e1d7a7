// Package queue implements the durable delivery queue: Redis-backed job
// storage, bounded worker pools, pacing, backend failover, bounded retries
// with exponential backoff, and dead-letter quarantine.
package queue

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
)

// QueueName identifies one of the two logical queues
type QueueName string

const (
	// QueueMessages carries per-recipient send jobs
	QueueMessages QueueName = "messages"
	// QueueCampaigns carries whole-campaign bulk-send jobs
	QueueCampaigns QueueName = "campaigns"
)

// JobState is the queue-side lifecycle of a job
type JobState string

const (
	JobStateQueued      JobState = "queued"
	JobStateDispatching JobState = "dispatching"
	JobStateRetrying    JobState = "retrying"
	JobStateSucceeded   JobState = "succeeded"
	JobStateExhausted   JobState = "exhausted"
)

// Job is the ephemeral queue work item for one send (or one whole-campaign
// dispatch). It is owned exclusively by the orchestrator while in flight and
// persisted in Redis so it survives a process restart.
type Job struct {
	ID             string                `json:"id"`
	Queue          QueueName             `json:"queue"`
	CampaignID     uint                  `json:"campaign_id,omitempty"`
	MessageID      uint                  `json:"message_id,omitempty"`
	CustomerID     uint                  `json:"customer_id"`
	RecipientPhone string                `json:"recipient_phone,omitempty"`
	Body           string                `json:"body,omitempty"`
	Pacing         models.PacingPolicy   `json:"pacing"`
	MethodHint     models.DeliveryMethod `json:"method_hint"`
	DelayMs        int64                 `json:"delay_ms,omitempty"`
	Attempts       int                   `json:"attempts"`
	MaxRetries     int                   `json:"max_retries"`
	State          JobState              `json:"state"`
	EnqueuedAt     time.Time             `json:"enqueued_at"`
}

// NewMessageJob builds a per-recipient send job
func NewMessageJob(customerID, campaignID, messageID uint, phone, body string, pacing models.PacingPolicy) *Job {
	return &Job{
		ID:             uuid.NewString(),
		Queue:          QueueMessages,
		CampaignID:     campaignID,
		MessageID:      messageID,
		CustomerID:     customerID,
		RecipientPhone: phone,
		Body:           body,
		Pacing:         pacing,
		MethodHint:     models.DeliveryMethodPrimary,
		Attempts:       0,
		MaxRetries:     utils.DefaultMaxRetries,
		State:          JobStateQueued,
		EnqueuedAt:     utils.UTCNow(),
	}
}

// NewCampaignJob builds a whole-campaign bulk-send job
func NewCampaignJob(customerID, campaignID uint, delayMs int64) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Queue:      QueueCampaigns,
		CampaignID: campaignID,
		CustomerID: customerID,
		Pacing:     models.PacingBalanced,
		MethodHint: models.DeliveryMethodPrimary,
		DelayMs:    delayMs,
		Attempts:   0,
		MaxRetries: utils.DefaultMaxRetries,
		State:      JobStateQueued,
		EnqueuedAt: utils.UTCNow(),
	}
}

// RetryBackoff returns the delay before the next attempt:
// base * 2^attemptsMade.
func (j *Job) RetryBackoff(base time.Duration) time.Duration {
	if base <= 0 {
		base = utils.RetryBaseDelay
	}
	return base << uint(j.Attempts)
}

// toMap flattens the job into a Redis hash
func (j *Job) toMap() map[string]any {
	return map[string]any{
		"id":              j.ID,
		"queue":           string(j.Queue),
		"campaign_id":     strconv.FormatUint(uint64(j.CampaignID), 10),
		"message_id":      strconv.FormatUint(uint64(j.MessageID), 10),
		"customer_id":     strconv.FormatUint(uint64(j.CustomerID), 10),
		"recipient_phone": j.RecipientPhone,
		"body":            j.Body,
		"pacing":          string(j.Pacing),
		"method_hint":     string(j.MethodHint),
		"delay_ms":        strconv.FormatInt(j.DelayMs, 10),
		"attempts":        strconv.Itoa(j.Attempts),
		"max_retries":     strconv.Itoa(j.MaxRetries),
		"state":           string(j.State),
		"enqueued_at":     j.EnqueuedAt.Format(time.RFC3339Nano),
	}
}

// jobFromMap rebuilds a job from its Redis hash
func jobFromMap(fields map[string]string) (*Job, error) {
	if fields["id"] == "" {
		return nil, fmt.Errorf("job hash missing id")
	}

	campaignID, _ := strconv.ParseUint(fields["campaign_id"], 10, 32)
	messageID, _ := strconv.ParseUint(fields["message_id"], 10, 32)
	customerID, _ := strconv.ParseUint(fields["customer_id"], 10, 32)
	delayMs, _ := strconv.ParseInt(fields["delay_ms"], 10, 64)
	attempts, _ := strconv.Atoi(fields["attempts"])
	maxRetries, _ := strconv.Atoi(fields["max_retries"])
	enqueuedAt, _ := time.Parse(time.RFC3339Nano, fields["enqueued_at"])

	return &Job{
		ID:             fields["id"],
		Queue:          QueueName(fields["queue"]),
		CampaignID:     uint(campaignID),
		MessageID:      uint(messageID),
		CustomerID:     uint(customerID),
		RecipientPhone: fields["recipient_phone"],
		Body:           fields["body"],
		Pacing:         models.PacingPolicy(fields["pacing"]),
		MethodHint:     models.DeliveryMethod(fields["method_hint"]),
		DelayMs:        delayMs,
		Attempts:       attempts,
		MaxRetries:     maxRetries,
		State:          JobState(fields["state"]),
		EnqueuedAt:     enqueuedAt,
	}, nil
}

// pacingRange holds the bounds of one pacing policy's randomized delay
type pacingRange struct {
	min time.Duration
	max time.Duration
}

// pacingRanges maps each policy to its delay window. The randomized
// per-message delay exists to avoid anti-automation detection by the
// messaging network and is mandatory on every send attempt.
var pacingRanges = map[models.PacingPolicy]pacingRange{
	models.PacingFast:     {min: 2 * time.Second, max: 5 * time.Second},
	models.PacingBalanced: {min: 5 * time.Second, max: 10 * time.Second},
	models.PacingSafe:     {min: 10 * time.Second, max: 30 * time.Second},
}

// PacingDelay draws a uniform random delay from the policy's range. Unknown
// policies fall back to balanced.
func PacingDelay(policy models.PacingPolicy) time.Duration {
	r, ok := pacingRanges[policy]
	if !ok {
		r = pacingRanges[models.PacingBalanced]
	}
	return r.min + time.Duration(rand.Int63n(int64(r.max-r.min)))
}
