package businesses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
)

// Repository reads tenant rows.
type Repository interface {
	FindByID(ctx context.Context, businessID uuid.UUID) (*models.Business, error)
	IsAdmin(ctx context.Context, businessID, userID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed businesses repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, businessID uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).First(&business, "id = ?", businessID).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *repository) IsAdmin(ctx context.Context, businessID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BusinessAdmin{}).
		Where("business_id = ? AND user_id = ?", businessID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
