// Package poller reconciles externally reported delivery confirmations with
// the messages table and runs the optimistic delivery poller for sends the
// gateways never confirm explicitly.
package poller

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
)

// Reconciliation errors surfaced to the HTTP layer
var (
	ErrUnknownProviderMessage = errors.New("no message matches the provider message id")
	ErrUnknownDeliveryStatus  = errors.New("unrecognized delivery status")
)

// ConfirmationStatus values accepted from the delivery webhooks. "read"
// collapses into delivered: the subsystem does not track read receipts
// separately.
const (
	ConfirmationDelivered = "delivered"
	ConfirmationRead      = "read"
	ConfirmationFailed    = "failed"
	ConfirmationPending   = "pending"
)

// VerifySignature checks the webhook HMAC-SHA256 signature in constant time.
// The signature is the lowercase hex digest of the raw request body.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Reconciler applies delivery confirmations idempotently: every write is a
// guarded status transition, so duplicate and late confirmations fall
// through without effect.
type Reconciler struct {
	messageRepo  repository.MessageRepository
	campaignRepo repository.CampaignRepository
	logger       *log.Logger
}

// NewReconciler creates the confirmation reconciler
func NewReconciler(messageRepo repository.MessageRepository, campaignRepo repository.CampaignRepository, logger *log.Logger) *Reconciler {
	return &Reconciler{
		messageRepo:  messageRepo,
		campaignRepo: campaignRepo,
		logger:       logger,
	}
}

// ApplyConfirmation reconciles one externally reported status against the
// message identified by the backend-assigned provider message id.
func (r *Reconciler) ApplyConfirmation(ctx context.Context, providerMessageID, status string, at time.Time) error {
	if at.IsZero() {
		at = utils.UTCNow()
	}

	switch status {
	case ConfirmationDelivered, ConfirmationRead, ConfirmationFailed, ConfirmationPending:
	default:
		return ErrUnknownDeliveryStatus
	}
	if status == ConfirmationPending {
		// the backend will report again once it knows more
		return nil
	}

	matches, err := r.messageRepo.ByFilter(ctx, models.MessageFilter{ProviderMessageID: &providerMessageID}, "", 1, 0)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrUnknownProviderMessage
	}
	message := matches[0]

	var applied bool
	switch status {
	case ConfirmationDelivered, ConfirmationRead:
		deliveredAt := at.UTC()
		applied, err = r.messageRepo.Transition(ctx, message.ID,
			[]models.MessageStatus{models.MessageStatusSent},
			models.MessageStatusDelivered,
			repository.MessageTransition{DeliveredAt: &deliveredAt})
	case ConfirmationFailed:
		failedAt := at.UTC()
		reason := "delivery failure reported by backend"
		applied, err = r.messageRepo.Transition(ctx, message.ID,
			[]models.MessageStatus{models.MessageStatusSent, models.MessageStatusPending},
			models.MessageStatusFailed,
			repository.MessageTransition{FailureReason: &reason, FailedAt: &failedAt})
	}
	if err != nil {
		return err
	}
	if !applied {
		// duplicate or late confirmation, the message already advanced
		r.logger.Printf("confirmation %s for message %d ignored, status already %s", status, message.ID, message.Status)
		return nil
	}

	if _, err := r.campaignRepo.RecomputeCounters(ctx, message.CampaignID); err != nil {
		r.logger.Printf("counter recompute for campaign %d failed: %v", message.CampaignID, err)
	}
	return nil
}

// DeliveryPoller periodically promotes unconfirmed sent messages to
// delivered. WhatsApp offers no reliable per-message delivery query, so a
// message that has drawn no failure report for the grace period is treated
// as delivered. The resulting delivered counts are approximate by
// construction.
type DeliveryPoller struct {
	messageRepo  repository.MessageRepository
	campaignRepo repository.CampaignRepository
	logger       *log.Logger
	cfg          config.PollerConfig
}

// NewDeliveryPoller creates the poller
func NewDeliveryPoller(messageRepo repository.MessageRepository, campaignRepo repository.CampaignRepository, logger *log.Logger, cfg config.PollerConfig) *DeliveryPoller {
	return &DeliveryPoller{
		messageRepo:  messageRepo,
		campaignRepo: campaignRepo,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start launches the poll loop in a background goroutine and returns a stop
// function.
func (p *DeliveryPoller) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		p.pollOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()

	p.logger.Println("delivery poller started")

	return func() {
		cancel()
		<-done
		p.logger.Println("delivery poller stopped")
	}
}

// pollOnce promotes one batch of unconfirmed sent messages. The window
// excludes messages younger than the grace period (a failure report may
// still arrive) and older than the poll window (too stale to call).
func (p *DeliveryPoller) pollOnce(ctx context.Context) {
	now := utils.UTCNow()
	sentAfter := now.Add(-p.cfg.Window)
	sentBefore := now.Add(-p.cfg.GracePeriod)

	messages, err := p.messageRepo.ListUnconfirmedSent(ctx, sentAfter, sentBefore, p.cfg.BatchSize)
	if err != nil {
		p.logger.Printf("delivery poll failed: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	promoted := 0
	campaigns := make(map[uint]struct{})
	for _, m := range messages {
		deliveredAt := now
		applied, err := p.messageRepo.Transition(ctx, m.ID,
			[]models.MessageStatus{models.MessageStatusSent},
			models.MessageStatusDelivered,
			repository.MessageTransition{DeliveredAt: &deliveredAt})
		if err != nil {
			p.logger.Printf("optimistic delivery for message %d failed: %v", m.ID, err)
			continue
		}
		if applied {
			promoted++
			campaigns[m.CampaignID] = struct{}{}
		}
	}

	for id := range campaigns {
		if _, err := p.campaignRepo.RecomputeCounters(ctx, id); err != nil {
			p.logger.Printf("counter recompute for campaign %d failed: %v", id, err)
		}
	}

	if promoted > 0 {
		p.logger.Printf("optimistically delivered %d messages across %d campaigns", promoted, len(campaigns))
	}
}
