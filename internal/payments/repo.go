package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// Repository persists payment transactions. Status updates are guarded on the
// current status so a transaction can only leave PENDING once.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, transaction *models.PaymentTransaction) error
	FindByProviderRef(ctx context.Context, provider enums.PaymentProvider, providerTransactionID string) (*models.PaymentTransaction, error)
	FindLatestPendingManual(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	FindLatestSuccessful(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	MarkStatus(ctx context.Context, transactionID uuid.UUID, from, to enums.PaymentTransactionStatus) (bool, error)
	SumRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed payment transaction repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) FindByProviderRef(ctx context.Context, provider enums.PaymentProvider, providerTransactionID string) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		First(&transaction, "provider = ? AND provider_transaction_id = ?", provider, providerTransactionID).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindLatestPendingManual(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND provider = ? AND status = ?",
			orderID, enums.PaymentProviderManual, enums.PaymentTransactionStatusPending).
		Order("created_at DESC").
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) FindLatestSuccessful(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var transaction models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentTransactionStatusSuccess).
		Order("created_at DESC").
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) MarkStatus(ctx context.Context, transactionID uuid.UUID, from, to enums.PaymentTransactionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", transactionID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) SumRefunded(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	var raw decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentTransactionStatusRefunded).
		Select("SUM(amount)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !raw.Valid {
		return decimal.Zero, nil
	}
	return raw.Decimal, nil
}
