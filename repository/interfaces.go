package repository

import (
	"context"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/google/uuid"
)

// CampaignRepository defines data access for campaigns, including the
// recompute-from-source path for the cached delivery counters.
type CampaignRepository interface {
	ByID(ctx context.Context, id uint) (*models.Campaign, error)
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, campaign *models.Campaign) error
	ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error)
	ListScheduled(ctx context.Context) ([]*models.Campaign, error)

	// UpdateStatus moves the campaign between lifecycle states, guarded by
	// the expected current states; returns true when the row was updated.
	UpdateStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error)

	// RecomputeCounters re-derives the cached sent/delivered/failed counters
	// from the messages table, re-running on racing message writes instead of
	// publishing a stale count.
	RecomputeCounters(ctx context.Context, id uint) (*models.CampaignMessageCounts, error)
}

// ContactRepository defines data access for campaign contacts
type ContactRepository interface {
	Save(ctx context.Context, contact *models.Contact) error
	SaveBatch(ctx context.Context, contacts []*models.Contact) error
	ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Contact, error)
	CountByCampaign(ctx context.Context, campaignID uint) (int64, error)

	// ExistingPhones returns the subset of phones already present on ANY
	// campaign of the given customer, read from a consistent snapshot.
	ExistingPhones(ctx context.Context, customerID uint, phones []string) (map[string]struct{}, error)
}

// MessageTransition carries the optional fields written alongside a guarded
// message status transition.
type MessageTransition struct {
	DeliveryMethod    *models.DeliveryMethod
	ProviderMessageID *string
	FailureReason     *string
	SentAt            *time.Time
	DeliveredAt       *time.Time
	FailedAt          *time.Time
	IncrementRetry    bool
}

// MessageRepository defines data access for messages. All status writes go
// through Transition, which enforces the current-status precondition.
type MessageRepository interface {
	ByID(ctx context.Context, id uint) (*models.Message, error)
	Save(ctx context.Context, message *models.Message) error
	SaveBatch(ctx context.Context, messages []*models.Message) error
	ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error)

	// Transition updates the message status iff its current status is one of
	// from; returns true when the guarded update applied.
	Transition(ctx context.Context, id uint, from []models.MessageStatus, to models.MessageStatus, fields MessageTransition) (bool, error)

	// CountsByCampaign groups the campaign's messages by status.
	CountsByCampaign(ctx context.Context, campaignID uint) (*models.CampaignMessageCounts, error)

	// ListStuckPending returns messages still pending past the staleness
	// threshold, for the sweep to re-enqueue.
	ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Message, error)

	// ListUnconfirmedSent returns sent messages inside the window whose
	// delivery has not been externally confirmed.
	ListUnconfirmedSent(ctx context.Context, sentAfter, sentBefore time.Time, limit int) ([]*models.Message, error)

	// ListRetryable returns failed messages still below their retry budget.
	ListRetryable(ctx context.Context, limit int) ([]*models.Message, error)
}

// DeadLetterRepository defines data access for exhausted queue jobs
type DeadLetterRepository interface {
	Save(ctx context.Context, entry *models.DeadLetter) error
	ByJobID(ctx context.Context, jobID string) (*models.DeadLetter, error)
	ListUnredriven(ctx context.Context, limit int) ([]*models.DeadLetter, error)
	MarkRedriven(ctx context.Context, id uint) error
}

// WhatsAppSessionRepository defines data access for delivery-backend sessions
type WhatsAppSessionRepository interface {
	ByCustomerAndBackend(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*models.WhatsAppSession, error)
	Activate(ctx context.Context, customerID uint, backend models.DeliveryMethod, sessionName string) (*models.WhatsAppSession, error)
	Invalidate(ctx context.Context, customerID uint, backend models.DeliveryMethod) error
	Touch(ctx context.Context, id uint) error
}
