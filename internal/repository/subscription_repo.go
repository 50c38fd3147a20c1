package repository

import (
	"context"
	"fmt"

	"github.com/truongvando/ezstream-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepo implements SubscriptionRepository using GORM.
type subscriptionRepo struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) *subscriptionRepo {
	return &subscriptionRepo{db: db}
}

// GetByOwner retrieves the owner's subscription limit, nil when none exists.
func (r *subscriptionRepo) GetByOwner(ctx context.Context, ownerID models.ULID) (*models.SubscriptionLimit, error) {
	var limit models.SubscriptionLimit
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&limit).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting subscription by owner: %w", err)
	}
	return &limit, nil
}

// Upsert creates or replaces the owner's subscription limit.
func (r *subscriptionRepo) Upsert(ctx context.Context, limit *models.SubscriptionLimit) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan", "max_concurrent_streams", "max_storage_bytes", "updated_at",
			}),
		}).
		Create(limit).Error
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// Delete removes the owner's subscription limit.
func (r *subscriptionRepo) Delete(ctx context.Context, ownerID models.ULID) error {
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.SubscriptionLimit{}).Error; err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}
