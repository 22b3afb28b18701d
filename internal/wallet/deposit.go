package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// InitiateDeposit opens a deposit: a PENDING ledger row, a synthetic sale
// order against the platform business, and a payment intent. The PENDING row
// is marked FAILED immediately if the provider rejects the intent; it is
// completed later by the gateway's webhook join hook.
func (s *service) InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, providerID enums.PaymentProvider, metadata map[string]string) (*payments.PaymentResult, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}
	if !providerID.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment provider")
	}

	wallet, err := s.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := s.ordersSvc.CreateDepositOrder(ctx, orders.DepositOrderInput{
		BusinessID:    s.cfg.PlatformBusinessID,
		CustomerID:    userID,
		Amount:        amount,
		CurrencyCode:  wallet.CurrencyCode,
		PaymentMethod: providerID,
	})
	if err != nil {
		return nil, err
	}

	pending := &models.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		Type:           enums.WalletTransactionTypeDeposit,
		Amount:         amount,
		Status:         enums.WalletTransactionStatusPending,
		Description:    fmt.Sprintf("deposit via %s (order %s)", providerID, order.OrderNumber),
		RelatedOrderID: &order.ID,
	}
	if err := s.repo.CreateTransaction(ctx, pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create deposit transaction")
	}

	result, err := s.gateway.CreatePayment(ctx, order.ID, userID, providerID, metadata)
	if err != nil {
		// Never leave the deposit PENDING when the provider already said no.
		if _, markErr := s.repo.MarkTransactionStatus(ctx, pending.ID,
			enums.WalletTransactionStatusPending, enums.WalletTransactionStatusFailed); markErr != nil {
			s.logg.Error(ctx, "failed to mark deposit transaction failed", markErr)
		}
		return nil, err
	}
	return result, nil
}

// InitiateWithdrawal debits the wallet and records a WITHDRAWAL row. The
// payout to the user's external account is executed by an operator outside
// this service.
func (s *service) InitiateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}

	wallet, err := s.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "wallet withdrawal"
	}
	return s.Debit(ctx, EntryInput{
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        enums.WalletTransactionTypeWithdrawal,
		Description: description,
	})
}

// CreditForDepositTx completes a deposit inside the gateway's webhook
// transaction. The gateway only calls it the first time the payment
// transaction turns terminal, so the credit applies exactly once.
func (s *service) CreditForDepositTx(ctx context.Context, tx *gorm.DB, orderID, paymentTransactionID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	repo := s.repo.WithTx(tx)

	pending, err := repo.FindPendingDepositByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("paid deposit order %s has no pending wallet transaction", orderID))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load deposit transaction")
	}

	applied, err := repo.MarkTransactionStatus(ctx, pending.ID,
		enums.WalletTransactionStatusPending, enums.WalletTransactionStatusCompleted)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to complete deposit transaction")
	}
	if !applied {
		return nil
	}

	if err := tx.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ?", pending.ID).
		Update("related_payment_transaction_id", paymentTransactionID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to link deposit transaction")
	}

	if _, err := repo.AdjustBalance(ctx, pending.WalletID, pending.Amount, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to credit wallet")
	}

	s.logg.Info(s.logg.WithField(ctx, "wallet_id", pending.WalletID.String()), "deposit credited")
	return nil
}

// FailForDepositTx marks the deposit row FAILED when the payment fails. A
// missing or already-settled row is a no-op.
func (s *service) FailForDepositTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	repo := s.repo.WithTx(tx)

	pending, err := repo.FindPendingDepositByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load deposit transaction")
	}

	if _, err := repo.MarkTransactionStatus(ctx, pending.ID,
		enums.WalletTransactionStatusPending, enums.WalletTransactionStatusFailed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to fail deposit transaction")
	}
	return nil
}
