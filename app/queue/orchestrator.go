package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Susanoo/app/services"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to the HTTP layer
var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrCampaignNotOwned  = errors.New("campaign does not belong to this account")
	ErrAllBackendsFailed = errors.New("all delivery backends failed")
)

// Options tunes the orchestrator's worker pools and retry policy
type Options struct {
	MessageWorkers  int
	CampaignWorkers int
	PollInterval    time.Duration
	RetryBaseDelay  time.Duration
	// StuckClaimAge is how long a claimed job may stay in flight before the
	// sweep treats its worker as dead and releases it.
	StuckClaimAge time.Duration
	// SessionReadyWait bounds how long a campaign dispatch waits for a
	// backend session to come up before the attempt counts as failed.
	SessionReadyWait time.Duration
}

// withDefaults fills unset options
func (o Options) withDefaults() Options {
	if o.MessageWorkers <= 0 {
		o.MessageWorkers = 10
	}
	if o.CampaignWorkers <= 0 {
		o.CampaignWorkers = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = utils.RetryBaseDelay
	}
	if o.StuckClaimAge <= 0 {
		o.StuckClaimAge = 10 * time.Minute
	}
	if o.SessionReadyWait <= 0 {
		o.SessionReadyWait = utils.SessionReadyTimeout
	}
	return o
}

// Orchestrator owns the delivery pipeline: it accepts jobs, paces and
// dispatches them through the backend clients with primary-to-fallback
// failover, retries with exponential backoff, and quarantines exhausted jobs
// in the dead-letter table. The messages table stays the single source of
// truth for delivery state; queue state is reconstructible.
type Orchestrator struct {
	store          Store
	db             *gorm.DB
	campaignRepo   repository.CampaignRepository
	contactRepo    repository.ContactRepository
	messageRepo    repository.MessageRepository
	deadLetterRepo repository.DeadLetterRepository
	sessions       *services.SessionRegistry
	clients        map[models.DeliveryMethod]services.WhatsAppClient
	logger         *log.Logger
	opts           Options
}

// NewOrchestrator creates the delivery orchestrator
func NewOrchestrator(
	store Store,
	db *gorm.DB,
	campaignRepo repository.CampaignRepository,
	contactRepo repository.ContactRepository,
	messageRepo repository.MessageRepository,
	deadLetterRepo repository.DeadLetterRepository,
	sessions *services.SessionRegistry,
	logger *log.Logger,
	opts Options,
	clients ...services.WhatsAppClient,
) *Orchestrator {
	byMethod := make(map[models.DeliveryMethod]services.WhatsAppClient, len(clients))
	for _, c := range clients {
		byMethod[c.Method()] = c
	}
	return &Orchestrator{
		store:          store,
		db:             db,
		campaignRepo:   campaignRepo,
		contactRepo:    contactRepo,
		messageRepo:    messageRepo,
		deadLetterRepo: deadLetterRepo,
		sessions:       sessions,
		clients:        byMethod,
		logger:         logger,
		opts:           opts.withDefaults(),
	}
}

// EnqueueMessage accepts a single ad-hoc send. The recipient phone is
// normalized up front; a pending message row is created when the send is
// attached to a campaign so the ground truth exists before the job runs.
func (o *Orchestrator) EnqueueMessage(ctx context.Context, customerID, campaignID uint, phone, body string, pacing models.PacingPolicy) (*Job, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !pacing.Valid() {
		pacing = models.PacingBalanced
	}

	var messageID uint
	if campaignID != 0 {
		campaign, err := o.campaignRepo.ByID(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if campaign == nil {
			return nil, ErrCampaignNotFound
		}
		if campaign.CustomerID != customerID {
			return nil, ErrCampaignNotOwned
		}

		message := &models.Message{
			UUID:           uuid.New(),
			CampaignID:     campaignID,
			RecipientPhone: normalized,
			MessageBody:    body,
			Status:         models.MessageStatusPending,
			MaxRetries:     utils.DefaultMaxRetries,
		}
		if err := o.messageRepo.Save(ctx, message); err != nil {
			return nil, err
		}
		messageID = message.ID
	}

	job := NewMessageJob(customerID, campaignID, messageID, normalized, body, pacing)
	if err := o.store.Enqueue(ctx, job, utils.UTCNow()); err != nil {
		return nil, err
	}

	o.logger.Printf("enqueued message job %s for customer %d (campaign %d)", job.ID, customerID, campaignID)
	return job, nil
}

// EnqueueCampaign accepts a whole-campaign bulk send. delayMs, when positive,
// replaces the pacing policy's randomized delay with a fixed gap between
// sends.
func (o *Orchestrator) EnqueueCampaign(ctx context.Context, customerID, campaignID uint, delayMs int64) (*Job, error) {
	campaign, err := o.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.CustomerID != customerID {
		return nil, ErrCampaignNotOwned
	}

	job := NewCampaignJob(customerID, campaignID, delayMs)
	job.Pacing = campaign.Pacing
	if err := o.store.Enqueue(ctx, job, utils.UTCNow()); err != nil {
		return nil, err
	}

	o.logger.Printf("enqueued campaign job %s for campaign %d", job.ID, campaignID)
	return job, nil
}

// RequeueMessage puts an existing message row back on the queue without
// creating a new row. Used by the maintenance sweeps for stuck-pending and
// retryable-failed messages; hint picks which backend the next attempt
// tries first.
func (o *Orchestrator) RequeueMessage(ctx context.Context, message *models.Message, hint models.DeliveryMethod) (*Job, error) {
	campaign, err := o.campaignRepo.ByID(ctx, message.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	job := NewMessageJob(campaign.CustomerID, message.CampaignID, message.ID, message.RecipientPhone, message.MessageBody, campaign.Pacing)
	if hint.Valid() {
		job.MethodHint = hint
	}
	if err := o.store.Enqueue(ctx, job, utils.UTCNow()); err != nil {
		return nil, err
	}

	return job, nil
}

// JobStatus returns the queue-side view of one job
func (o *Orchestrator) JobStatus(ctx context.Context, id string) (*Job, error) {
	return o.store.JobByID(ctx, id)
}

// Stats snapshots both queues
func (o *Orchestrator) Stats(ctx context.Context) (map[QueueName]*QueueStats, error) {
	out := make(map[QueueName]*QueueStats, 2)
	for _, q := range []QueueName{QueueMessages, QueueCampaigns} {
		stats, err := o.store.Stats(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = stats
	}
	return out, nil
}

// Start launches the worker pools and returns a stop function that blocks
// until all in-flight jobs finish their current attempt.
func (o *Orchestrator) Start(ctx context.Context) func() {
	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	for i := 0; i < o.opts.MessageWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			o.workerLoop(runCtx, QueueMessages, worker, o.processMessageJob)
		}(i)
	}
	for i := 0; i < o.opts.CampaignWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			o.workerLoop(runCtx, QueueCampaigns, worker, o.processCampaignJob)
		}(i)
	}

	o.logger.Printf("delivery workers started (%d message, %d campaign)", o.opts.MessageWorkers, o.opts.CampaignWorkers)

	return func() {
		cancel()
		wg.Wait()
		o.logger.Println("delivery workers stopped")
	}
}

// workerLoop claims and processes jobs until the context is cancelled
func (o *Orchestrator) workerLoop(ctx context.Context, queue QueueName, worker int, process func(context.Context, *Job)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobs, err := o.store.Claim(ctx, queue, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Printf("worker %s/%d claim error: %v", queue, worker, err)
			o.sleep(ctx, o.opts.PollInterval)
			continue
		}
		if len(jobs) == 0 {
			o.sleep(ctx, o.opts.PollInterval)
			continue
		}

		for _, job := range jobs {
			process(ctx, job)
		}
	}
}

// processMessageJob runs one paced send attempt with failover
func (o *Orchestrator) processMessageJob(ctx context.Context, job *Job) {
	if !o.pace(ctx, job) {
		// shutdown mid-pace: put the claimed job back so the next boot
		// picks it up instead of the stuck-claim sweep
		if err := o.store.Retry(context.WithoutCancel(ctx), job, utils.UTCNow()); err != nil {
			o.logger.Printf("job %s resume write failed: %v", job.ID, err)
		}
		return
	}

	result, method, err := o.sendWithFailover(ctx, job.CustomerID, job.RecipientPhone, job.Body, job.MethodHint)
	if err != nil {
		o.handleMessageFailure(ctx, job, err)
		return
	}

	if job.MessageID != 0 {
		sentAt := utils.UTCNow()
		applied, terr := o.messageRepo.Transition(ctx, job.MessageID,
			[]models.MessageStatus{models.MessageStatusPending},
			models.MessageStatusSent,
			repository.MessageTransition{
				DeliveryMethod:    &method,
				ProviderMessageID: &result.MessageID,
				SentAt:            &sentAt,
			})
		if terr != nil {
			o.logger.Printf("job %s sent but status write failed: %v", job.ID, terr)
		} else if !applied {
			// already transitioned by a racing dispatch; the send was
			// duplicated but the record stays consistent
			o.logger.Printf("job %s: message %d was not pending, skipping status write", job.ID, job.MessageID)
		}
	}

	if err := o.store.Complete(ctx, job, JobStateSucceeded); err != nil {
		o.logger.Printf("job %s complete write failed: %v", job.ID, err)
	}
	jobsCompletedTotal.WithLabelValues(string(job.Queue), string(JobStateSucceeded)).Inc()

	if job.CampaignID != 0 {
		if _, err := o.campaignRepo.RecomputeCounters(ctx, job.CampaignID); err != nil {
			o.logger.Printf("job %s counter recompute failed: %v", job.ID, err)
		}
	}
}

// handleMessageFailure applies the retry policy to a failed send attempt
func (o *Orchestrator) handleMessageFailure(ctx context.Context, job *Job, sendErr error) {
	reason := sendErr.Error()

	// malformed recipient: terminal regardless of budget, the number will
	// never become valid
	if services.IsInvalidRecipient(sendErr) {
		o.exhaust(ctx, job, models.MessageStatusBounced, reason)
		return
	}

	if job.Attempts < job.MaxRetries-1 {
		delay := job.RetryBackoff(o.opts.RetryBaseDelay)
		job.Attempts++
		if err := o.store.Retry(ctx, job, utils.UTCNow().Add(delay)); err != nil {
			o.logger.Printf("job %s retry write failed: %v", job.ID, err)
			return
		}
		jobRetriesTotal.WithLabelValues(string(job.Queue)).Inc()
		o.logger.Printf("job %s attempt %d failed, retrying in %s: %v", job.ID, job.Attempts, delay, sendErr)
		return
	}

	job.Attempts++
	o.exhaust(ctx, job, models.MessageStatusFailed, reason)
}

// exhaust quarantines the job in the dead-letter table, failing the message
// row in the same transaction, then marks the job terminal.
func (o *Orchestrator) exhaust(ctx context.Context, job *Job, messageStatus models.MessageStatus, reason string) {
	entry := &models.DeadLetter{
		JobID:          job.ID,
		Queue:          string(job.Queue),
		CustomerID:     job.CustomerID,
		RecipientPhone: job.RecipientPhone,
		MessageBody:    job.Body,
		Pacing:         job.Pacing,
		MethodHint:     job.MethodHint,
		Attempts:       job.Attempts,
		FailureReason:  reason,
	}
	if job.CampaignID != 0 {
		entry.CampaignID = utils.ToPtr(job.CampaignID)
	}
	if job.MessageID != 0 {
		entry.MessageID = utils.ToPtr(job.MessageID)
	}

	err := repository.WithTransaction(ctx, o.db, func(txCtx context.Context) error {
		if job.MessageID != 0 {
			failedAt := utils.UTCNow()
			if _, terr := o.messageRepo.Transition(txCtx, job.MessageID,
				[]models.MessageStatus{models.MessageStatusPending},
				messageStatus,
				repository.MessageTransition{
					FailureReason: &reason,
					FailedAt:      &failedAt,
				}); terr != nil {
				return terr
			}
		}
		return o.deadLetterRepo.Save(txCtx, entry)
	})
	if err != nil {
		o.logger.Printf("job %s dead-letter write failed: %v", job.ID, err)
	} else {
		deadLettersTotal.Inc()
	}

	if err := o.store.Complete(ctx, job, JobStateExhausted); err != nil {
		o.logger.Printf("job %s complete write failed: %v", job.ID, err)
	}
	jobsCompletedTotal.WithLabelValues(string(job.Queue), string(JobStateExhausted)).Inc()

	if job.CampaignID != 0 {
		if _, err := o.campaignRepo.RecomputeCounters(ctx, job.CampaignID); err != nil {
			o.logger.Printf("job %s counter recompute failed: %v", job.ID, err)
		}
	}

	o.logger.Printf("job %s exhausted after %d attempts: %s", job.ID, job.Attempts, reason)
}

// transitionFailed moves a pending message to its terminal failure status
func (o *Orchestrator) transitionFailed(ctx context.Context, messageID uint, to models.MessageStatus, reason string) {
	failedAt := utils.UTCNow()
	_, err := o.messageRepo.Transition(ctx, messageID,
		[]models.MessageStatus{models.MessageStatusPending},
		to,
		repository.MessageTransition{
			FailureReason: &reason,
			FailedAt:      &failedAt,
		})
	if err != nil {
		o.logger.Printf("message %d failure write failed: %v", messageID, err)
	}
}

// processCampaignJob claims the campaign and walks its contact list
// sequentially, creating one message per contact and sending with pacing
// between sends. Contacts that already have a message row are skipped, so a
// re-driven job resumes where the previous run stopped.
func (o *Orchestrator) processCampaignJob(ctx context.Context, job *Job) {
	now := utils.UTCNow()
	claimed, err := o.campaignRepo.UpdateStatus(ctx, job.CampaignID,
		[]models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusSending},
		models.CampaignStatusSending,
		map[string]any{"started_at": now})
	if err != nil {
		o.handleCampaignFailure(ctx, job, fmt.Errorf("failed to claim campaign %d: %w", job.CampaignID, err))
		return
	}
	if !claimed {
		// already sent or failed terminally, nothing to do
		o.logger.Printf("job %s: campaign %d not claimable, skipping", job.ID, job.CampaignID)
		if err := o.store.Complete(ctx, job, JobStateSucceeded); err != nil {
			o.logger.Printf("job %s complete write failed: %v", job.ID, err)
		}
		return
	}

	campaign, err := o.campaignRepo.ByID(ctx, job.CampaignID)
	if err != nil || campaign == nil {
		o.handleCampaignFailure(ctx, job, fmt.Errorf("failed to load campaign %d: %w", job.CampaignID, err))
		return
	}

	// wait once for a backend session before walking the contact list, so a
	// cold session costs one bounded wait instead of a failure per contact
	hint, err := o.awaitBackend(ctx, job)
	if err != nil {
		o.handleCampaignFailure(ctx, job, err)
		return
	}

	contacts, err := o.contactRepo.ListByCampaign(ctx, job.CampaignID)
	if err != nil {
		o.handleCampaignFailure(ctx, job, fmt.Errorf("failed to load contacts for campaign %d: %w", job.CampaignID, err))
		return
	}

	// phones already carrying a message row are done or in flight
	dispatched, err := o.dispatchedPhones(ctx, job.CampaignID)
	if err != nil {
		o.handleCampaignFailure(ctx, job, err)
		return
	}

	for _, contact := range contacts {
		if _, ok := dispatched[contact.Phone]; ok {
			continue
		}

		select {
		case <-ctx.Done():
			// shutdown mid-campaign: put the job back so the next boot resumes
			if err := o.store.Retry(context.WithoutCancel(ctx), job, utils.UTCNow()); err != nil {
				o.logger.Printf("job %s resume write failed: %v", job.ID, err)
			}
			return
		default:
		}

		message := &models.Message{
			UUID:           uuid.New(),
			CampaignID:     job.CampaignID,
			RecipientPhone: contact.Phone,
			MessageBody:    campaign.MessageBody,
			Status:         models.MessageStatusPending,
			MaxRetries:     utils.DefaultMaxRetries,
		}
		if err := o.messageRepo.Save(ctx, message); err != nil {
			o.logger.Printf("job %s: message create for %s failed: %v", job.ID, contact.Phone, err)
			continue
		}

		if !o.paceCampaignSend(ctx, job) {
			if err := o.store.Retry(context.WithoutCancel(ctx), job, utils.UTCNow()); err != nil {
				o.logger.Printf("job %s resume write failed: %v", job.ID, err)
			}
			return
		}

		result, method, sendErr := o.sendWithFailover(ctx, job.CustomerID, contact.Phone, campaign.MessageBody, hint)
		if sendErr != nil {
			reason := sendErr.Error()
			status := models.MessageStatusFailed
			if services.IsInvalidRecipient(sendErr) {
				status = models.MessageStatusBounced
			}
			o.transitionFailed(ctx, message.ID, status, reason)
			o.logger.Printf("job %s: send to %s failed: %v", job.ID, contact.Phone, sendErr)
			continue
		}

		sentAt := utils.UTCNow()
		if _, err := o.messageRepo.Transition(ctx, message.ID,
			[]models.MessageStatus{models.MessageStatusPending},
			models.MessageStatusSent,
			repository.MessageTransition{
				DeliveryMethod:    &method,
				ProviderMessageID: &result.MessageID,
				SentAt:            &sentAt,
			}); err != nil {
			o.logger.Printf("job %s: status write for message %d failed: %v", job.ID, message.ID, err)
		}
	}

	completedAt := utils.UTCNow()
	if _, err := o.campaignRepo.UpdateStatus(ctx, job.CampaignID,
		[]models.CampaignStatus{models.CampaignStatusSending},
		models.CampaignStatusSent,
		map[string]any{"completed_at": completedAt}); err != nil {
		o.logger.Printf("job %s: campaign completion write failed: %v", job.ID, err)
	}
	if _, err := o.campaignRepo.RecomputeCounters(ctx, job.CampaignID); err != nil {
		o.logger.Printf("job %s counter recompute failed: %v", job.ID, err)
	}

	if err := o.store.Complete(ctx, job, JobStateSucceeded); err != nil {
		o.logger.Printf("job %s complete write failed: %v", job.ID, err)
	}
	jobsCompletedTotal.WithLabelValues(string(job.Queue), string(JobStateSucceeded)).Inc()

	o.logger.Printf("job %s: campaign %d dispatched (%d contacts)", job.ID, job.CampaignID, len(contacts))
}

// handleCampaignFailure retries infrastructure failures of a campaign job
// and, once exhausted, fails the campaign and quarantines the job.
func (o *Orchestrator) handleCampaignFailure(ctx context.Context, job *Job, cause error) {
	if job.Attempts < job.MaxRetries-1 {
		delay := job.RetryBackoff(o.opts.RetryBaseDelay)
		job.Attempts++
		if err := o.store.Retry(ctx, job, utils.UTCNow().Add(delay)); err != nil {
			o.logger.Printf("job %s retry write failed: %v", job.ID, err)
			return
		}
		jobRetriesTotal.WithLabelValues(string(job.Queue)).Inc()
		o.logger.Printf("job %s attempt %d failed, retrying in %s: %v", job.ID, job.Attempts, delay, cause)
		return
	}

	job.Attempts++
	if _, err := o.campaignRepo.UpdateStatus(ctx, job.CampaignID,
		[]models.CampaignStatus{models.CampaignStatusSending, models.CampaignStatusScheduled, models.CampaignStatusDraft},
		models.CampaignStatusFailed,
		nil); err != nil {
		o.logger.Printf("job %s: campaign failure write failed: %v", job.ID, err)
	}
	o.exhaust(ctx, job, models.MessageStatusFailed, cause.Error())
}

// dispatchedPhones collects recipients already holding a message row for the
// campaign, in pages to bound memory.
func (o *Orchestrator) dispatchedPhones(ctx context.Context, campaignID uint) (map[string]struct{}, error) {
	const pageSize = 1000
	out := make(map[string]struct{})
	filter := models.MessageFilter{CampaignID: &campaignID}
	for offset := 0; ; offset += pageSize {
		page, err := o.messageRepo.ByFilter(ctx, filter, "id ASC", pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages for campaign %d: %w", campaignID, err)
		}
		for _, m := range page {
			out[m.RecipientPhone] = struct{}{}
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// sendWithFailover tries the hinted backend first and fails over to the
// other one when the failure is failover-eligible. Invalid recipients never
// fail over.
func (o *Orchestrator) sendWithFailover(ctx context.Context, customerID uint, phone, body string, hint models.DeliveryMethod) (*services.SendResult, models.DeliveryMethod, error) {
	order := []models.DeliveryMethod{hint, hint.Other()}
	var lastErr error

	for i, method := range order {
		client, ok := o.clients[method]
		if !ok {
			continue
		}

		result, err := client.Send(ctx, customerID, phone, body)
		if err == nil {
			sendAttemptsTotal.WithLabelValues(string(method), "success").Inc()
			if i > 0 {
				failoversTotal.Inc()
			}
			return result, method, nil
		}

		sendAttemptsTotal.WithLabelValues(string(method), string(services.CodeOf(err))).Inc()
		lastErr = err

		if services.IsInvalidRecipient(err) || !services.FailoverEligible(err) {
			return nil, method, err
		}
	}

	if lastErr == nil {
		lastErr = ErrAllBackendsFailed
	}
	return nil, hint, lastErr
}

// awaitBackend waits for the hinted backend session to become ready before a
// campaign walk starts. When it stays down the other backend is awaited, so
// the whole run fails over once instead of per contact; the effective method
// hint is returned.
func (o *Orchestrator) awaitBackend(ctx context.Context, job *Job) (models.DeliveryMethod, error) {
	hint := job.MethodHint
	if hint == "" {
		hint = models.DeliveryMethodPrimary
	}

	if err := o.sessions.AwaitReady(ctx, job.CustomerID, hint, o.opts.SessionReadyWait); err == nil {
		return hint, nil
	}

	other := hint.Other()
	if err := o.sessions.AwaitReady(ctx, job.CustomerID, other, o.opts.SessionReadyWait); err != nil {
		return hint, services.NewDeliveryError(services.DeliveryErrNotConnected, string(hint),
			fmt.Errorf("no backend session ready for customer %d: %w", job.CustomerID, err))
	}

	o.logger.Printf("job %s: backend %s not ready, dispatching via %s", job.ID, hint, other)
	return other, nil
}

// pace sleeps the randomized pacing delay for a message job
func (o *Orchestrator) pace(ctx context.Context, job *Job) bool {
	delay := PacingDelay(job.Pacing)
	pacingDelaySeconds.WithLabelValues(string(job.Pacing)).Observe(delay.Seconds())
	return o.sleep(ctx, delay)
}

// paceCampaignSend applies the inter-send gap inside a campaign job. A
// positive DelayMs overrides the pacing policy with a fixed gap.
func (o *Orchestrator) paceCampaignSend(ctx context.Context, job *Job) bool {
	var delay time.Duration
	if job.DelayMs > 0 {
		delay = time.Duration(job.DelayMs) * time.Millisecond
	} else {
		delay = PacingDelay(job.Pacing)
	}
	pacingDelaySeconds.WithLabelValues(string(job.Pacing)).Observe(delay.Seconds())
	return o.sleep(ctx, delay)
}

// sleep waits for d or until the context is cancelled; returns false on
// cancellation.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RetryDeadLettered re-drives up to limit quarantined jobs. Message jobs are
// re-enqueued on the opposite backend with a fresh attempt budget after their
// message row is moved back to pending; campaign jobs are simply re-enqueued.
func (o *Orchestrator) RetryDeadLettered(ctx context.Context, limit int) (int, error) {
	entries, err := o.deadLetterRepo.ListUnredriven(ctx, limit)
	if err != nil {
		return 0, err
	}

	redriven := 0
	for _, entry := range entries {
		var job *Job
		switch QueueName(entry.Queue) {
		case QueueMessages:
			var messageID uint
			if entry.MessageID != nil {
				messageID = *entry.MessageID
				applied, terr := o.messageRepo.Transition(ctx, messageID,
					[]models.MessageStatus{models.MessageStatusFailed},
					models.MessageStatusPending,
					repository.MessageTransition{IncrementRetry: true})
				if terr != nil {
					o.logger.Printf("dead letter %d: message revert failed: %v", entry.ID, terr)
					continue
				}
				if !applied {
					// message no longer failed or out of retry budget; retire
					// the entry without re-driving
					if err := o.deadLetterRepo.MarkRedriven(ctx, entry.ID); err != nil {
						o.logger.Printf("dead letter %d: redrive mark failed: %v", entry.ID, err)
					}
					continue
				}
			}
			var campaignID uint
			if entry.CampaignID != nil {
				campaignID = *entry.CampaignID
			}
			job = NewMessageJob(entry.CustomerID, campaignID, messageID, entry.RecipientPhone, entry.MessageBody, entry.Pacing)
			job.MethodHint = entry.MethodHint.Other()
		case QueueCampaigns:
			if entry.CampaignID == nil {
				continue
			}
			job = NewCampaignJob(entry.CustomerID, *entry.CampaignID, 0)
			job.Pacing = entry.Pacing
		default:
			continue
		}

		if err := o.store.Enqueue(ctx, job, utils.UTCNow()); err != nil {
			o.logger.Printf("dead letter %d: re-enqueue failed: %v", entry.ID, err)
			continue
		}
		if err := o.deadLetterRepo.MarkRedriven(ctx, entry.ID); err != nil {
			o.logger.Printf("dead letter %d: redrive mark failed: %v", entry.ID, err)
		}
		redriven++
	}

	return redriven, nil
}

// ReleaseStuck rescues claimed jobs whose worker died, across both queues
func (o *Orchestrator) ReleaseStuck(ctx context.Context) (int, error) {
	deadline := utils.UTCNow().Add(-o.opts.StuckClaimAge)
	total := 0
	for _, q := range []QueueName{QueueMessages, QueueCampaigns} {
		n, err := o.store.ReleaseStuck(ctx, q, deadline)
		if err != nil {
			return total, err
		}
		total += n
	}
	if total > 0 {
		o.logger.Printf("released %d stuck jobs back to their queues", total)
	}
	return total, nil
}
