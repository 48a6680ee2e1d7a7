package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recomputeMaxAttempts bounds the read-then-write retry loop when counter
// recomputation races with concurrent message writes.
const recomputeMaxAttempts = 3

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db)}
}

func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var row models.Campaign
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
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

	err = db.Save(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListScheduled returns every campaign with a persisted schedule, used on
// boot to re-arm timers lost to a process restart.
func (r *CampaignRepositoryImpl) ListScheduled(ctx context.Context) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	var rows []*models.Campaign
	err := db.Model(&models.Campaign{}).
		Where("status = ? AND scheduled_for IS NOT NULL", models.CampaignStatusScheduled).
		Order("scheduled_for ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
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
	for k, v := range fields {
		updates[k] = v
	}

	query := db.Model(&models.Campaign{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		err = fmt.Errorf("failed to update campaign status: %w", res.Error)
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// RecomputeCounters re-derives the campaign's cached counters from the
// messages table. The aggregation is read, written, and read again; if a
// concurrent message write changed the distribution in between, the loop
// re-runs so a stale count is never left published.
func (r *CampaignRepositoryImpl) RecomputeCounters(ctx context.Context, id uint) (*models.CampaignMessageCounts, error) {
	db := r.getDB(ctx)

	var counts models.CampaignMessageCounts
	for attempt := 0; attempt < recomputeMaxAttempts; attempt++ {
		before, err := countMessagesByStatus(db, id)
		if err != nil {
			return nil, err
		}

		res := db.Model(&models.Campaign{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"sent_count":      before.SentCount(),
				"delivered_count": int(before.Delivered),
				"failed_count":    before.FailedCount(),
				"updated_at":      utils.UTCNow(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to write campaign counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("campaign %d not found", id)
		}

		after, err := countMessagesByStatus(db, id)
		if err != nil {
			return nil, err
		}
		if *after == *before {
			counts = *after
			return &counts, nil
		}
		// A message write raced the recomputation; re-run with fresh counts.
		counts = *after
	}
	return &counts, nil
}

func countMessagesByStatus(db *gorm.DB, campaignID uint) (*models.CampaignMessageCounts, error) {
	var rows []struct {
		Status models.MessageStatus
		N      int64
	}
	err := db.Model(&models.Message{}).
		Select("status, COUNT(*) AS n").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}

	var counts models.CampaignMessageCounts
	for _, row := range rows {
		switch row.Status {
		case models.MessageStatusPending:
			counts.Pending = row.N
		case models.MessageStatusSent:
			counts.Sent = row.N
		case models.MessageStatusDelivered:
			counts.Delivered = row.N
		case models.MessageStatusFailed:
			counts.Failed = row.N
		case models.MessageStatusBounced:
			counts.Bounced = row.N
		}
	}
	return &counts, nil
}
