package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
)

// Repository persists variants, batches and the stock movement ledger.
// Decrements are guarded so a concurrent writer can never drive a quantity
// negative; callers must check the returned bool and retry or fail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindVariantByID(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
	DecrementVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) (bool, error)
	IncrementVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error

	FindDepletableBatches(ctx context.Context, variantID uuid.UUID) ([]models.ProductBatch, error)
	FindBatchByID(ctx context.Context, batchID uuid.UUID) (*models.ProductBatch, error)
	CreateBatch(ctx context.Context, batch *models.ProductBatch) error
	DecrementBatch(ctx context.Context, batchID uuid.UUID, quantity int) (bool, error)
	ZeroBatch(ctx context.Context, batchID uuid.UUID, expectedQuantity int) (bool, error)

	CreateMovement(ctx context.Context, movement *models.StockMovement) error

	FindExpiringBatches(ctx context.Context, businessID uuid.UUID, from, until time.Time) ([]models.ProductBatch, error)
	FindExpiredBatches(ctx context.Context, businessID uuid.UUID, asOf time.Time) ([]models.ProductBatch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed stock repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariantByID(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) DecrementVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND quantity_in_stock >= ?", variantID, quantity).
		UpdateColumn("quantity_in_stock", gorm.Expr("quantity_in_stock - ?", quantity))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) IncrementVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("quantity_in_stock", gorm.Expr("quantity_in_stock + ?", quantity)).Error
}

// FindDepletableBatches returns the variant's open batches in FEFO order.
// Undated batches sort last: an unknown expiry is treated as "expires never".
func (r *repository) FindDepletableBatches(ctx context.Context, variantID uuid.UUID) ([]models.ProductBatch, error) {
	var batches []models.ProductBatch
	err := r.db.WithContext(ctx).
		Where("variant_id = ? AND quantity > 0", variantID).
		Order("expiration_date IS NULL, expiration_date ASC, received_at ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) FindBatchByID(ctx context.Context, batchID uuid.UUID) (*models.ProductBatch, error) {
	var batch models.ProductBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) CreateBatch(ctx context.Context, batch *models.ProductBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) DecrementBatch(ctx context.Context, batchID uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductBatch{}).
		Where("id = ? AND quantity >= ?", batchID, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ZeroBatch(ctx context.Context, batchID uuid.UUID, expectedQuantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductBatch{}).
		Where("id = ? AND quantity = ?", batchID, expectedQuantity).
		UpdateColumn("quantity", 0)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) FindExpiringBatches(ctx context.Context, businessID uuid.UUID, from, until time.Time) ([]models.ProductBatch, error) {
	var batches []models.ProductBatch
	err := r.db.WithContext(ctx).
		Select("product_batches.*").
		Joins("JOIN product_variants ON product_variants.id = product_batches.variant_id").
		Where("product_variants.business_id = ?", businessID).
		Where("product_batches.quantity > 0").
		Where("product_batches.expiration_date BETWEEN ? AND ?", from, until).
		Order("product_batches.expiration_date ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) FindExpiredBatches(ctx context.Context, businessID uuid.UUID, asOf time.Time) ([]models.ProductBatch, error) {
	var batches []models.ProductBatch
	err := r.db.WithContext(ctx).
		Select("product_batches.*").
		Joins("JOIN product_variants ON product_variants.id = product_batches.variant_id").
		Where("product_variants.business_id = ?", businessID).
		Where("product_batches.quantity > 0").
		Where("product_batches.expiration_date < ?", asOf).
		Order("product_batches.expiration_date ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}
