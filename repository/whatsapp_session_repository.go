package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// WhatsAppSessionRepositoryImpl implements WhatsAppSessionRepository
type WhatsAppSessionRepositoryImpl struct {
	*BaseRepository[models.WhatsAppSession, models.WhatsAppSessionFilter]
}

func NewWhatsAppSessionRepository(db *gorm.DB) WhatsAppSessionRepository {
	return &WhatsAppSessionRepositoryImpl{BaseRepository: NewBaseRepository[models.WhatsAppSession, models.WhatsAppSessionFilter](db)}
}

func (r *WhatsAppSessionRepositoryImpl) ByCustomerAndBackend(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*models.WhatsAppSession, error) {
	db := r.getDB(ctx)
	var row models.WhatsAppSession
	err := db.Where("customer_id = ? AND backend = ?", customerID, backend).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Activate creates or reactivates the single session row for (customer,
// backend). One active session per pair is enforced by the unique index.
func (r *WhatsAppSessionRepositoryImpl) Activate(ctx context.Context, customerID uint, backend models.DeliveryMethod, sessionName string) (*models.WhatsAppSession, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
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

	now := utils.UTCNow()
	var row models.WhatsAppSession
	findErr := db.Where("customer_id = ? AND backend = ?", customerID, backend).First(&row).Error
	switch {
	case findErr == nil:
		row.SessionName = sessionName
		row.IsActive = true
		row.LastUsedAt = &now
		row.UpdatedAt = now
		if err = db.Save(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to reactivate session: %w", err)
		}
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		row = models.WhatsAppSession{
			CustomerID:  customerID,
			Backend:     backend,
			SessionName: sessionName,
			IsActive:    true,
			LastUsedAt:  &now,
			UpdatedAt:   now,
		}
		if err = db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	default:
		err = findErr
		return nil, err
	}

	return &row, nil
}

func (r *WhatsAppSessionRepositoryImpl) Invalidate(ctx context.Context, customerID uint, backend models.DeliveryMethod) error {
	db := r.getDB(ctx)
	return db.Model(&models.WhatsAppSession{}).
		Where("customer_id = ? AND backend = ?", customerID, backend).
		Updates(map[string]any{"is_active": false, "updated_at": utils.UTCNow()}).Error
}

func (r *WhatsAppSessionRepositoryImpl) Touch(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	return db.Model(&models.WhatsAppSession{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_used_at": now, "updated_at": now}).Error
}
