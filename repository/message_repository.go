package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db)}
}

func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, f models.MessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.RecipientPhone != nil {
		db = db.Where("recipient_phone = ?", *f.RecipientPhone)
	}
	if f.ProviderMessageID != nil {
		db = db.Where("provider_message_id = ?", *f.ProviderMessageID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.SentAfter != nil {
		db = db.Where("sent_at >= ?", *f.SentAfter)
	}
	if f.SentBefore != nil {
		db = db.Where("sent_at < ?", *f.SentBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Message{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition applies a guarded status update: the write only lands when the
// message's current status is one of from. A false return means the guard
// rejected the write (for example a late duplicate completion arriving after
// the message already advanced to delivered).
func (r *MessageRepositoryImpl) Transition(ctx context.Context, id uint, from []models.MessageStatus, to models.MessageStatus, fields MessageTransition) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("invalid target status %q", to)
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	if fields.DeliveryMethod != nil {
		updates["delivery_method"] = *fields.DeliveryMethod
	}
	if fields.ProviderMessageID != nil {
		updates["provider_message_id"] = *fields.ProviderMessageID
	}
	if fields.FailureReason != nil {
		updates["failure_reason"] = *fields.FailureReason
	}
	if fields.SentAt != nil {
		updates["sent_at"] = *fields.SentAt
	}
	if fields.DeliveredAt != nil {
		updates["delivered_at"] = *fields.DeliveredAt
	}
	if fields.FailedAt != nil {
		updates["failed_at"] = *fields.FailedAt
	}
	if fields.IncrementRetry {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}

	query := db.Model(&models.Message{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	if fields.IncrementRetry {
		// A retry never exceeds the per-message budget.
		query = query.Where("retry_count < max_retries")
	}

	res := query.Updates(updates)
	if res.Error != nil {
		err = fmt.Errorf("failed to transition message %d to %s: %w", id, to, res.Error)
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (r *MessageRepositoryImpl) CountsByCampaign(ctx context.Context, campaignID uint) (*models.CampaignMessageCounts, error) {
	db := r.getDB(ctx)
	return countMessagesByStatus(db, campaignID)
}

func (r *MessageRepositoryImpl) ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	var rows []*models.Message
	query := db.Model(&models.Message{}).
		Where("status = ? AND created_at < ?", models.MessageStatusPending, olderThan).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageRepositoryImpl) ListUnconfirmedSent(ctx context.Context, sentAfter, sentBefore time.Time, limit int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	var rows []*models.Message
	query := db.Model(&models.Message{}).
		Where("status = ? AND sent_at >= ? AND sent_at < ?", models.MessageStatusSent, sentAfter, sentBefore).
		Order("sent_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MessageRepositoryImpl) ListRetryable(ctx context.Context, limit int) ([]*models.Message, error) {
	db := r.getDB(ctx)
	var rows []*models.Message
	query := db.Model(&models.Message{}).
		Where("status = ? AND retry_count < max_retries", models.MessageStatusFailed).
		Order("failed_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
