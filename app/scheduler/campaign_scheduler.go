// Package scheduler runs campaign scheduling and the periodic maintenance
// sweeps that keep the delivery pipeline converging.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/app/queue"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/robfig/cron/v3"
)

// Scheduling errors surfaced to the HTTP layer
var (
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignNotOwned       = errors.New("campaign does not belong to this account")
	ErrScheduleTimeInPast     = errors.New("scheduled time must be in the future")
	ErrCampaignNotSchedulable = errors.New("campaign cannot be scheduled in its current status")
)

// Dispatcher is the orchestrator capability the scheduler needs
type Dispatcher interface {
	EnqueueCampaign(ctx context.Context, customerID, campaignID uint, delayMs int64) (*queue.Job, error)
	RequeueMessage(ctx context.Context, message *models.Message, hint models.DeliveryMethod) (*queue.Job, error)
	RetryDeadLettered(ctx context.Context, limit int) (int, error)
	ReleaseStuck(ctx context.Context) (int, error)
}

// scheduledFire tracks one armed campaign timer
type scheduledFire struct {
	customerID uint
	timer      *time.Timer
}

// CampaignScheduler arms one timer per scheduled campaign and runs the cron
// sweeps. The schedule is persisted before the timer is armed, so a crash
// between the two leaves a recoverable row, never a lost schedule; boot-time
// recovery re-arms every scheduled campaign from the database.
type CampaignScheduler struct {
	campaignRepo repository.CampaignRepository
	messageRepo  repository.MessageRepository
	dispatcher   Dispatcher
	logger       *log.Logger
	cfg          config.SchedulerConfig

	mu     sync.Mutex
	timers map[uint]*scheduledFire

	cron    *cron.Cron
	baseCtx context.Context
}

// NewCampaignScheduler creates the scheduler
func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.MessageRepository,
	dispatcher Dispatcher,
	logger *log.Logger,
	cfg config.SchedulerConfig,
) *CampaignScheduler {
	return &CampaignScheduler{
		campaignRepo: campaignRepo,
		messageRepo:  messageRepo,
		dispatcher:   dispatcher,
		logger:       logger,
		cfg:          cfg,
		timers:       make(map[uint]*scheduledFire),
	}
}

// ScheduleCampaign persists the schedule and arms the fire timer. The
// database write happens first: an armed timer without a persisted row
// would vanish on restart.
func (s *CampaignScheduler) ScheduleCampaign(ctx context.Context, customerID, campaignID uint, at time.Time) error {
	if !at.After(utils.UTCNow()) {
		return ErrScheduleTimeInPast
	}

	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}
	if campaign.CustomerID != customerID {
		return ErrCampaignNotOwned
	}
	if !campaign.IsSchedulable() {
		return ErrCampaignNotSchedulable
	}

	applied, err := s.campaignRepo.UpdateStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusScheduled},
		models.CampaignStatusScheduled,
		map[string]any{"scheduled_for": at.UTC()})
	if err != nil {
		return err
	}
	if !applied {
		return ErrCampaignNotSchedulable
	}

	s.arm(customerID, campaignID, at)
	s.logger.Printf("campaign %d scheduled for %s", campaignID, at.UTC().Format(time.RFC3339))
	return nil
}

// CancelSchedule disarms the timer and reverts the campaign to draft.
// Cancelling a campaign that is not scheduled (already fired, unknown) is a
// no-op success: the caller's intent, no future fire, already holds.
func (s *CampaignScheduler) CancelSchedule(ctx context.Context, customerID, campaignID uint) error {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}
	if campaign.CustomerID != customerID {
		return ErrCampaignNotOwned
	}

	s.disarm(campaignID)

	if _, err := s.campaignRepo.UpdateStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusScheduled},
		models.CampaignStatusDraft,
		map[string]any{"scheduled_for": nil}); err != nil {
		return err
	}

	s.logger.Printf("campaign %d schedule cancelled", campaignID)
	return nil
}

// arm replaces any existing timer for the campaign
func (s *CampaignScheduler) arm(customerID, campaignID uint, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[campaignID]; ok {
		existing.timer.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[campaignID] = &scheduledFire{
		customerID: customerID,
		timer: time.AfterFunc(delay, func() {
			s.fire(customerID, campaignID)
		}),
	}
}

// disarm stops and forgets the campaign's timer, if any
func (s *CampaignScheduler) disarm(campaignID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[campaignID]; ok {
		existing.timer.Stop()
		delete(s.timers, campaignID)
	}
}

// fire hands the campaign to the delivery queue. The orchestrator's guarded
// claim makes a double fire harmless.
func (s *CampaignScheduler) fire(customerID, campaignID uint) {
	s.mu.Lock()
	delete(s.timers, campaignID)
	ctx := s.baseCtx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.dispatcher.EnqueueCampaign(ctx, customerID, campaignID, 0); err != nil {
		s.logger.Printf("scheduled fire for campaign %d failed: %v", campaignID, err)
		return
	}
	s.logger.Printf("campaign %d fired on schedule", campaignID)
}

// RecoverScheduled re-arms every scheduled campaign from the database.
// Overdue campaigns fire immediately.
func (s *CampaignScheduler) RecoverScheduled(ctx context.Context) error {
	campaigns, err := s.campaignRepo.ListScheduled(ctx)
	if err != nil {
		return err
	}

	for _, c := range campaigns {
		if c.ScheduledFor == nil {
			continue
		}
		s.arm(c.CustomerID, c.ID, *c.ScheduledFor)
	}

	if len(campaigns) > 0 {
		s.logger.Printf("recovered %d scheduled campaigns", len(campaigns))
	}
	return nil
}

// Start recovers persisted schedules, registers the cron sweeps, and returns
// a stop function.
func (s *CampaignScheduler) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if err := s.RecoverScheduled(ctx); err != nil {
		cancel()
		return nil, err
	}

	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.cfg.StuckPendingSweep, func() { s.sweepStuckPending(ctx) }); err != nil {
		cancel()
		return nil, err
	}
	if _, err := s.cron.AddFunc(s.cfg.FailedRetrySweep, func() { s.sweepFailedRetries(ctx) }); err != nil {
		cancel()
		return nil, err
	}

	s.cron.Start()
	s.logger.Println("campaign scheduler started")

	return func() {
		cancel()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()

		s.mu.Lock()
		for id, f := range s.timers {
			f.timer.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()

		s.logger.Println("campaign scheduler stopped")
	}, nil
}

// sweepStuckPending re-enqueues messages stranded in pending past the
// staleness threshold (their job was lost, its worker died, or the process
// crashed mid-campaign) and releases queue claims held by dead workers.
func (s *CampaignScheduler) sweepStuckPending(ctx context.Context) {
	if _, err := s.dispatcher.ReleaseStuck(ctx); err != nil {
		s.logger.Printf("stuck claim release failed: %v", err)
	}

	olderThan := utils.UTCNow().Add(-s.cfg.StuckPendingAge)
	messages, err := s.messageRepo.ListStuckPending(ctx, olderThan, s.cfg.FailedRetryBatch)
	if err != nil {
		s.logger.Printf("stuck pending sweep failed: %v", err)
		return
	}

	requeued := 0
	for _, m := range messages {
		if _, err := s.dispatcher.RequeueMessage(ctx, m, models.DeliveryMethodPrimary); err != nil {
			s.logger.Printf("stuck pending requeue for message %d failed: %v", m.ID, err)
			continue
		}
		requeued++
	}

	if requeued > 0 {
		s.logger.Printf("re-enqueued %d stuck pending messages", requeued)
	}
}

// sweepFailedRetries re-drives failed messages still inside their retry
// budget, alternating the delivery backend from the one that last failed,
// and re-drives dead letters when configured.
func (s *CampaignScheduler) sweepFailedRetries(ctx context.Context) {
	messages, err := s.messageRepo.ListRetryable(ctx, s.cfg.FailedRetryBatch)
	if err != nil {
		s.logger.Printf("failed retry sweep failed: %v", err)
		return
	}

	retried := 0
	for _, m := range messages {
		applied, err := s.messageRepo.Transition(ctx, m.ID,
			[]models.MessageStatus{models.MessageStatusFailed},
			models.MessageStatusPending,
			repository.MessageTransition{IncrementRetry: true})
		if err != nil {
			s.logger.Printf("retry revert for message %d failed: %v", m.ID, err)
			continue
		}
		if !applied {
			continue
		}

		hint := models.DeliveryMethodPrimary
		if m.DeliveryMethod != nil {
			hint = m.DeliveryMethod.Other()
		}
		if _, err := s.dispatcher.RequeueMessage(ctx, m, hint); err != nil {
			s.logger.Printf("retry requeue for message %d failed: %v", m.ID, err)
			continue
		}
		retried++
	}

	if retried > 0 {
		s.logger.Printf("re-drove %d failed messages", retried)
	}

	if s.cfg.DeadLetterRedrive > 0 {
		n, err := s.dispatcher.RetryDeadLettered(ctx, s.cfg.DeadLetterRedrive)
		if err != nil {
			s.logger.Printf("dead letter redrive failed: %v", err)
		} else if n > 0 {
			s.logger.Printf("re-drove %d dead letters", n)
		}
	}
}
