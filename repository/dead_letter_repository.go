package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"gorm.io/gorm"
)

// DeadLetterRepositoryImpl implements DeadLetterRepository
type DeadLetterRepositoryImpl struct {
	*BaseRepository[models.DeadLetter, models.DeadLetterFilter]
}

func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &DeadLetterRepositoryImpl{BaseRepository: NewBaseRepository[models.DeadLetter, models.DeadLetterFilter](db)}
}

func (r *DeadLetterRepositoryImpl) ByJobID(ctx context.Context, jobID string) (*models.DeadLetter, error) {
	db := r.getDB(ctx)
	var row models.DeadLetter
	if err := db.Where("job_id = ?", jobID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *DeadLetterRepositoryImpl) ListUnredriven(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	db := r.getDB(ctx)
	var rows []*models.DeadLetter
	query := db.Model(&models.DeadLetter{}).
		Where("redriven_at IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DeadLetterRepositoryImpl) MarkRedriven(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.DeadLetter{}).
		Where("id = ? AND redriven_at IS NULL", id).
		Update("redriven_at", utils.UTCNow()).Error
}
