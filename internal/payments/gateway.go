package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/internal/orders"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
	"github.com/mercanto-labs/mercanto-backend/pkg/metrics"
)

// Service is the provider-agnostic payment façade. It owns the payment side
// of the order status machine; the idempotency anchor for webhooks is the
// payment transaction's terminal status, keyed by provider transaction id.
type Service interface {
	CreatePayment(ctx context.Context, orderID, userID uuid.UUID, providerID enums.PaymentProvider, metadata map[string]string) (*PaymentResult, error)
	ProcessWebhook(ctx context.Context, providerID enums.PaymentProvider, payload []byte, headers http.Header) (*models.Order, error)
	ConfirmManualPayment(ctx context.Context, orderID, actor uuid.UUID, notes *string) (*models.Order, error)
	Refund(ctx context.Context, orderID, actor uuid.UUID, amount *decimal.Decimal) (*models.Order, error)

	// BindWalletCreditor wires the wallet deposit join hook after both
	// services exist. Must be called before the server starts serving.
	BindWalletCreditor(creditor WalletCreditor)
}

// WalletCreditor is the join point with the wallet ledger for deposit orders.
// The gateway only invokes it the first time a transaction reaches a terminal
// status, so the credit fires exactly once per transaction.
type WalletCreditor interface {
	CreditForDepositTx(ctx context.Context, tx *gorm.DB, orderID, paymentTransactionID uuid.UUID) error
	FailForDepositTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type orderEngine interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, in orders.UpdateStatusInput) (*models.Order, error)
}

type businessAuthorizer interface {
	CanManage(ctx context.Context, businessID, userID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config carries gateway wiring that is not a collaborator.
type Config struct {
	PlatformBusinessID uuid.UUID
	// IntentTimeout bounds synchronous provider calls (create-intent,
	// refund). Zero disables the bound.
	IntentTimeout time.Duration
}

func (c Config) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.IntentTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.IntentTimeout)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	ordersSvc  orderEngine
	businesses businessAuthorizer
	registry   *Registry
	tx         txRunner
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
	cfg        Config
	wallet     WalletCreditor
}

// NewService builds the payment gateway.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	ordersSvc orderEngine,
	businesses businessAuthorizer,
	registry *Registry,
	tx txRunner,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
	cfg Config,
) (Service, error) {
	if repo == nil || ordersRepo == nil || ordersSvc == nil || businesses == nil ||
		registry == nil || tx == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service dependencies are required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		ordersSvc:  ordersSvc,
		businesses: businesses,
		registry:   registry,
		tx:         tx,
		metrics:    paymentMetrics,
		logg:       logg,
		cfg:        cfg,
	}, nil
}

func (s *service) BindWalletCreditor(creditor WalletCreditor) {
	s.wallet = creditor
}

func (s *service) CreatePayment(ctx context.Context, orderID, userID uuid.UUID, providerID enums.PaymentProvider, metadata map[string]string) (*PaymentResult, error) {
	order, err := s.ordersSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s is not payable in status %s", order.OrderNumber, order.Status))
	}
	if order.CustomerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the order's customer can pay it")
	}

	provider, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	var result *PaymentResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// Provider call inside the transaction: a provider failure aborts
		// everything so no orphaned PENDING transaction survives.
		providerCtx, cancel := s.cfg.providerContext(ctx)
		defer cancel()
		intent, err := provider.CreateIntent(providerCtx, CreateIntentInput{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			CustomerID:   order.CustomerID,
			Amount:       order.TotalAmount,
			CurrencyCode: order.CurrencyCode,
			Metadata:     metadata,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err,
				fmt.Sprintf("provider %s failed to create intent", providerID))
		}

		if err := s.ordersRepo.WithTx(tx).SetPaymentInfo(ctx, order.ID, providerID, intent.ProviderTransactionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to stamp order payment info")
		}

		if err := s.repo.WithTx(tx).Create(ctx, &models.PaymentTransaction{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			Amount:                order.TotalAmount,
			CurrencyCode:          order.CurrencyCode,
			Provider:              providerID,
			ProviderTransactionID: intent.ProviderTransactionID,
			Status:                enums.PaymentTransactionStatusPending,
			Metadata:              intent.Raw,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create payment transaction")
		}

		result = &PaymentResult{
			OrderID:               order.ID,
			Provider:              providerID,
			ProviderTransactionID: intent.ProviderTransactionID,
			RedirectURL:           intent.RedirectURL,
			Amount:                order.TotalAmount,
			CurrencyCode:          order.CurrencyCode,
		}
		return nil
	})
	if err != nil {
		s.metrics.IncIntent(providerID.String(), "error")
		return nil, err
	}

	s.metrics.IncIntent(providerID.String(), "created")
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(ctx, fmt.Sprintf("payment intent created via %s", providerID))
	return result, nil
}

func (s *service) ProcessWebhook(ctx context.Context, providerID enums.PaymentProvider, payload []byte, headers http.Header) (*models.Order, error) {
	provider, err := s.registry.Get(providerID)
	if err != nil {
		s.metrics.IncWebhook(providerID.String(), "unsupported")
		return nil, err
	}

	event, err := provider.ParseWebhook(payload, headers)
	if err != nil {
		s.metrics.IncWebhook(providerID.String(), "rejected")
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transaction, err := repo.FindByProviderRef(ctx, providerID, event.ProviderTransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Error(ctx, "webhook references unknown payment transaction",
					fmt.Errorf("provider %s transaction %s", providerID, event.ProviderTransactionID))
				return pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("unknown transaction %s", event.ProviderTransactionID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payment transaction")
		}

		// Re-delivery is routine; an already-terminal transaction means the
		// event was applied before, so this is a no-op.
		if transaction.Status.IsTerminal() {
			order, err = s.ordersSvc.Get(ctx, transaction.OrderID)
			return err
		}

		applied, err := repo.MarkStatus(ctx, transaction.ID, enums.PaymentTransactionStatusPending, event.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update payment transaction")
		}
		if !applied {
			// A concurrent delivery won the race; treat as duplicate.
			order, err = s.ordersSvc.Get(ctx, transaction.OrderID)
			return err
		}

		order, err = s.applyTerminalStatus(ctx, tx, transaction, event.Status)
		return err
	})
	if err != nil {
		s.metrics.IncWebhook(providerID.String(), "error")
		return nil, err
	}

	s.metrics.IncWebhook(providerID.String(), "processed")
	return order, nil
}

// applyTerminalStatus forwards a transaction's first terminal status to the
// order machine and fires the wallet deposit hook when applicable.
func (s *service) applyTerminalStatus(ctx context.Context, tx *gorm.DB, transaction *models.PaymentTransaction, status enums.PaymentTransactionStatus) (*models.Order, error) {
	var orderStatus enums.OrderStatus
	switch status {
	case enums.PaymentTransactionStatusSuccess:
		orderStatus = enums.OrderStatusPaid
	case enums.PaymentTransactionStatusFailed:
		orderStatus = enums.OrderStatusPaymentFailed
	case enums.PaymentTransactionStatusRefunded:
		orderStatus = enums.OrderStatusRefunded
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("webhook carries non-terminal status %s", status))
	}

	order, err := s.ordersSvc.UpdateStatusTx(ctx, tx, orders.UpdateStatusInput{
		OrderID:              transaction.OrderID,
		NewStatus:            orderStatus,
		TriggeredBy:          orders.TriggeredBySystem,
		RelatedTransactionID: &transaction.ID,
	})
	if err != nil {
		return nil, err
	}

	if s.isDepositOrder(order) && s.wallet != nil {
		switch orderStatus {
		case enums.OrderStatusPaid:
			if err := s.wallet.CreditForDepositTx(ctx, tx, order.ID, transaction.ID); err != nil {
				return nil, err
			}
		case enums.OrderStatusPaymentFailed:
			if err := s.wallet.FailForDepositTx(ctx, tx, order.ID); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func (s *service) ConfirmManualPayment(ctx context.Context, orderID, actor uuid.UUID, notes *string) (*models.Order, error) {
	order, err := s.ordersSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.businesses.CanManage(ctx, order.BusinessID, actor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor cannot manage this order's business")
	}

	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s is not payable in status %s", order.OrderNumber, order.Status))
	}
	if order.PaymentMethod == nil || *order.PaymentMethod != enums.PaymentProviderManual {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s does not use manual payment", order.OrderNumber))
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		transaction, err := repo.FindLatestPendingManual(ctx, order.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("order %s has no pending manual transaction", order.OrderNumber))
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load manual transaction")
		}

		applied, err := repo.MarkStatus(ctx, transaction.ID, enums.PaymentTransactionStatusPending, enums.PaymentTransactionStatusSuccess)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to mark manual transaction")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "manual transaction already confirmed")
		}

		updated, err = s.ordersSvc.UpdateStatusTx(ctx, tx, orders.UpdateStatusInput{
			OrderID:              order.ID,
			NewStatus:            enums.OrderStatusPaid,
			TriggeredBy:          actor.String(),
			Notes:                notes,
			RelatedTransactionID: &transaction.ID,
		})
		if err != nil {
			return err
		}

		if s.isDepositOrder(updated) && s.wallet != nil {
			return s.wallet.CreditForDepositTx(ctx, tx, updated.ID, transaction.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(ctx, "manual payment confirmed")
	return updated, nil
}

func (s *service) Refund(ctx context.Context, orderID, actor uuid.UUID, amount *decimal.Decimal) (*models.Order, error) {
	order, err := s.ordersSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.businesses.CanManage(ctx, order.BusinessID, actor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor cannot manage this order's business")
	}

	if order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusPartiallyRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order %s is not refundable in status %s", order.OrderNumber, order.Status))
	}

	refundedSoFar, err := s.repo.SumRefunded(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to sum prior refunds")
	}
	remaining := order.TotalAmount.Sub(refundedSoFar)

	refundAmount := remaining
	if amount != nil {
		refundAmount = *amount
	}
	if !refundAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if refundAmount.GreaterThan(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("refund %s exceeds remaining refundable %s", refundAmount, remaining))
	}

	source, err := s.repo.FindLatestSuccessful(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s has no successful payment to refund", order.OrderNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load source transaction")
	}

	provider, err := s.registry.Get(source.Provider)
	if err != nil {
		return nil, err
	}

	newStatus := enums.OrderStatusPartiallyRefunded
	if refundAmount.Equal(remaining) {
		newStatus = enums.OrderStatusRefunded
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		providerCtx, cancel := s.cfg.providerContext(ctx)
		defer cancel()
		refund, err := provider.Refund(providerCtx, RefundInput{
			ProviderTransactionID: source.ProviderTransactionID,
			Amount:                refundAmount,
			CurrencyCode:          order.CurrencyCode,
		})
		if err != nil {
			return err
		}

		refundTx := &models.PaymentTransaction{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			Amount:                refundAmount,
			CurrencyCode:          order.CurrencyCode,
			Provider:              source.Provider,
			ProviderTransactionID: refund.ProviderRefundID,
			Status:                enums.PaymentTransactionStatusRefunded,
		}
		if err := s.repo.WithTx(tx).Create(ctx, refundTx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record refund transaction")
		}

		updated, err = s.ordersSvc.UpdateStatusTx(ctx, tx, orders.UpdateStatusInput{
			OrderID:              order.ID,
			NewStatus:            newStatus,
			TriggeredBy:          actor.String(),
			RelatedTransactionID: &refundTx.ID,
		})
		return err
	})
	if err != nil {
		s.metrics.IncRefund(source.Provider.String(), "error")
		return nil, err
	}

	s.metrics.IncRefund(source.Provider.String(), "refunded")
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)
	s.logg.Info(ctx, fmt.Sprintf("refunded %s %s", refundAmount, order.CurrencyCode))
	return updated, nil
}

func (s *service) isDepositOrder(order *models.Order) bool {
	return s.cfg.PlatformBusinessID != uuid.Nil && order.BusinessID == s.cfg.PlatformBusinessID
}
