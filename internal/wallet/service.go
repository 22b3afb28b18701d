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
	"github.com/mercanto-labs/mercanto-backend/pkg/db"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
	"github.com/mercanto-labs/mercanto-backend/pkg/pagination"
)

// EntryInput describes one ledger movement against a wallet.
type EntryInput struct {
	WalletID                    uuid.UUID
	Amount                      decimal.Decimal
	Type                        enums.WalletTransactionType
	Description                 string
	RelatedOrderID              *uuid.UUID
	RelatedPaymentTransactionID *uuid.UUID
}

// Service maintains per-user balances via append-only signed transactions.
// The balance column is only ever mutated in the same transaction that
// appends the ledger row.
type Service interface {
	FindOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, in EntryInput) (*models.Wallet, error)
	Debit(ctx context.Context, in EntryInput) (*models.Wallet, error)
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error)

	InitiateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, providerID enums.PaymentProvider, metadata map[string]string) (*payments.PaymentResult, error)
	InitiateWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error)

	// CreditForDepositTx and FailForDepositTx implement the payment
	// gateway's deposit join hook.
	CreditForDepositTx(ctx context.Context, tx *gorm.DB, orderID, paymentTransactionID uuid.UUID) error
	FailForDepositTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type paymentCreator interface {
	CreatePayment(ctx context.Context, orderID, userID uuid.UUID, providerID enums.PaymentProvider, metadata map[string]string) (*payments.PaymentResult, error)
}

type depositOrderCreator interface {
	CreateDepositOrder(ctx context.Context, in orders.DepositOrderInput) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config carries the platform identifiers deposits are booked against.
type Config struct {
	PlatformBusinessID uuid.UUID
	DefaultCurrency    string
}

type service struct {
	repo      Repository
	ordersSvc depositOrderCreator
	gateway   paymentCreator
	tx        txRunner
	logg      *logger.Logger
	cfg       Config
}

// NewService builds the wallet ledger.
func NewService(repo Repository, ordersSvc depositOrderCreator, gateway paymentCreator, tx txRunner, logg *logger.Logger, cfg Config) (Service, error) {
	if repo == nil || ordersSvc == nil || gateway == nil || tx == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet service dependencies are required")
	}
	if cfg.PlatformBusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform business id is required")
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &service{repo: repo, ordersSvc: ordersSvc, gateway: gateway, tx: tx, logg: logg, cfg: cfg}, nil
}

// FindOrCreate is safe under concurrent first access: the unique constraint
// on user_id is the source of truth, and a losing writer re-reads.
func (s *service) FindOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	wallet, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load wallet")
	}

	created := &models.Wallet{
		ID:           uuid.New(),
		UserID:       userID,
		CurrencyCode: s.cfg.DefaultCurrency,
		Balance:      decimal.Zero,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "") {
			wallet, err = s.repo.FindByUserID(ctx, userID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload wallet after race")
			}
			return wallet, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create wallet")
	}
	return created, nil
}

func (s *service) Credit(ctx context.Context, in EntryInput) (*models.Wallet, error) {
	if err := validateEntry(in); err != nil {
		return nil, err
	}

	var wallet *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.applyEntry(ctx, s.repo.WithTx(tx), in, in.Amount)
		if err != nil {
			return err
		}
		wallet = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *service) Debit(ctx context.Context, in EntryInput) (*models.Wallet, error) {
	if err := validateEntry(in); err != nil {
		return nil, err
	}

	var wallet *models.Wallet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.applyEntry(ctx, s.repo.WithTx(tx), in, in.Amount.Neg())
		if err != nil {
			return err
		}
		wallet = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// applyEntry appends a COMPLETED ledger row carrying the signed amount and
// moves the balance by the same amount, in the caller's transaction.
func (s *service) applyEntry(ctx context.Context, repo Repository, in EntryInput, signedAmount decimal.Decimal) (*models.Wallet, error) {
	wallet, err := repo.FindByID(ctx, in.WalletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load wallet")
	}

	applied, err := repo.AdjustBalance(ctx, wallet.ID, signedAmount, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to adjust balance")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("insufficient balance: have %s, want %s", wallet.Balance, signedAmount.Neg()))
	}

	if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		ID:                          uuid.New(),
		WalletID:                    wallet.ID,
		Type:                        in.Type,
		Amount:                      signedAmount,
		Status:                      enums.WalletTransactionStatusCompleted,
		Description:                 in.Description,
		RelatedOrderID:              in.RelatedOrderID,
		RelatedPaymentTransactionID: in.RelatedPaymentTransactionID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to append wallet transaction")
	}

	updated, err := repo.FindByID(ctx, wallet.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload wallet")
	}
	return updated, nil
}

// Transfer moves funds between two users' wallets. The debit guard and both
// ledger rows commit as one unit, so a failed credit rolls the debit back.
func (s *service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and recipient are required")
	}
	if fromUserID == toUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to own wallet")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if description == "" {
		description = "wallet transfer"
	}

	sender, err := s.FindOrCreate(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.FindOrCreate(ctx, toUserID)
	if err != nil {
		return nil, err
	}

	var updated *models.Wallet
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		debited, err := s.applyEntry(ctx, repo, EntryInput{
			WalletID:    sender.ID,
			Amount:      amount,
			Type:        enums.WalletTransactionTypeTransfer,
			Description: description,
		}, amount.Neg())
		if err != nil {
			return err
		}

		if _, err := s.applyEntry(ctx, repo, EntryInput{
			WalletID:    recipient.ID,
			Amount:      amount,
			Type:        enums.WalletTransactionTypeTransfer,
			Description: description,
		}, amount); err != nil {
			return err
		}

		updated = debited
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, string, error) {
	wallet, err := s.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, wallet.ID, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list wallet transactions")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func validateEntry(in EntryInput) error {
	if in.WalletID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	if !in.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !in.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet transaction type")
	}
	if in.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	return nil
}
