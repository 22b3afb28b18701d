package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	"github.com/mercanto-labs/mercanto-backend/pkg/pagination"
)

// Repository persists wallets and the wallet transaction ledger. Debits are
// guarded on the current balance so concurrent writers cannot overdraw.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, wallet *models.Wallet) error
	FindByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	AdjustBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, requireFunds bool) (bool, error)

	CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error
	MarkTransactionStatus(ctx context.Context, transactionID uuid.UUID, from, to enums.WalletTransactionStatus) (bool, error)
	FindPendingDepositByOrder(ctx context.Context, orderID uuid.UUID) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed wallet repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) AdjustBalance(ctx context.Context, walletID uuid.UUID, delta decimal.Decimal, requireFunds bool) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID)
	if requireFunds && delta.IsNegative() {
		query = query.Where("balance >= ?", delta.Neg())
	}
	result := query.UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateTransaction(ctx context.Context, transaction *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) MarkTransactionStatus(ctx context.Context, transactionID uuid.UUID, from, to enums.WalletTransactionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ? AND status = ?", transactionID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindPendingDepositByOrder(ctx context.Context, orderID uuid.UUID) (*models.WalletTransaction, error) {
	var transaction models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("related_order_id = ? AND type = ? AND status = ?",
			orderID, enums.WalletTransactionTypeDeposit, enums.WalletTransactionStatusPending).
		Order("created_at DESC").
		First(&transaction).Error
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var transactions []models.WalletTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}
