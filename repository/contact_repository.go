package repository

import (
	"context"

	"github.com/amirphl/Susanoo/models"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Phone != nil {
		db = db.Where("phone = ?", *f.Phone)
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.Contact, error) {
	filter := models.ContactFilter{CampaignID: &campaignID}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *ContactRepositoryImpl) CountByCampaign(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Contact{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExistingPhones returns which of the given phones already belong to any of
// the customer's contacts, across all campaigns. Callers run this inside the
// import transaction so the snapshot stays consistent with the insert.
func (r *ContactRepositoryImpl) ExistingPhones(ctx context.Context, customerID uint, phones []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(phones) == 0 {
		return existing, nil
	}

	db := r.getDB(ctx)
	var found []string
	err := db.Model(&models.Contact{}).
		Where("customer_id = ? AND phone IN ?", customerID, phones).
		Pluck("phone", &found).Error
	if err != nil {
		return nil, err
	}

	for _, p := range found {
		existing[p] = struct{}{}
	}
	return existing, nil
}
