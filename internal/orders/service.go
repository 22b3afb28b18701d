package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercanto-labs/mercanto-backend/internal/stock"
	"github.com/mercanto-labs/mercanto-backend/pkg/db"
	"github.com/mercanto-labs/mercanto-backend/pkg/db/models"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
	"github.com/mercanto-labs/mercanto-backend/pkg/logger"
)

// TriggeredBySystem marks history rows written by webhook-driven transitions.
const TriggeredBySystem = "system"

const orderNumberAttempts = 3

// Service drives order creation and the status machine.
type Service interface {
	Create(ctx context.Context, in CreateOrderInput, actor uuid.UUID) (*models.Order, error)
	CreateDepositOrder(ctx context.Context, in DepositOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, in UpdateStatusInput) (*models.Order, error)

	// UpdateStatusTx applies a transition inside an externally owned
	// transaction, used by the payment gateway to move an order together
	// with its payment transaction.
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, in UpdateStatusInput) (*models.Order, error)
}

type stockDepleter interface {
	DepleteFEFOTx(ctx context.Context, tx *gorm.DB, in stock.DepleteInput) (*models.ProductVariant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo  Repository
	stock stockDepleter
	tx    txRunner
	logg  *logger.Logger
}

// NewService builds the order engine.
func NewService(repo Repository, stockSvc stockDepleter, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil || stockSvc == nil || tx == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service dependencies are required")
	}
	return &service{repo: repo, stock: stockSvc, tx: tx, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, in CreateOrderInput, actor uuid.UUID) (*models.Order, error) {
	if err := validateCreate(in, actor); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lines := make([]models.OrderLine, 0, len(in.Lines))
		total := decimal.Zero
		for _, line := range in.Lines {
			variant, err := repo.FindVariantByID(ctx, line.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound,
						fmt.Sprintf("variant %s not found", line.VariantID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load variant")
			}
			if variant.BusinessID != in.BusinessID {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("variant %s does not belong to the order's business", line.VariantID))
			}
			if in.Type == enums.OrderTypeSale && variant.QuantityInStock < line.Quantity {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for variant %s: have %d, want %d",
						line.VariantID, variant.QuantityInStock, line.Quantity))
			}

			// Price is snapshotted from the catalog now; the line never
			// re-reads it.
			lines = append(lines, models.OrderLine{
				ID:        uuid.New(),
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				UnitPrice: variant.Price,
			})
			total = total.Add(variant.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order, err := s.insertOrder(ctx, repo, &models.Order{
			Type:                 in.Type,
			Status:               enums.OrderStatusPendingPayment,
			TotalAmount:          total,
			CurrencyCode:         in.CurrencyCode,
			BusinessID:           in.BusinessID,
			CustomerID:           in.CustomerID,
			PurchasingBusinessID: in.PurchasingBusinessID,
			EmployeeID:           in.EmployeeID,
			TableID:              in.TableID,
			ReservationDate:      in.ReservationDate,
			PaymentMethod:        in.PaymentMethod,
			Lines:                lines,
		}, actor.String())
		if err != nil {
			return err
		}

		if in.Type == enums.OrderTypeSale {
			for _, line := range order.Lines {
				if _, err := s.stock.DepleteFEFOTx(ctx, tx, stock.DepleteInput{
					VariantID:     line.VariantID,
					Quantity:      line.Quantity,
					MovementType:  enums.MovementTypeSale,
					Reason:        fmt.Sprintf("sale order %s", order.OrderNumber),
					PerformedByID: actor,
					OrderID:       &order.ID,
				}); err != nil {
					return err
				}
			}
		}

		created, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, created.OrderNumber)
	s.logg.Info(ctx, "order created")
	return created, nil
}

func (s *service) CreateDepositOrder(ctx context.Context, in DepositOrderInput) (*models.Order, error) {
	if in.BusinessID == uuid.Nil || in.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business and customer are required")
	}
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}
	if !in.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	method := in.PaymentMethod
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.insertOrder(ctx, repo, &models.Order{
			Type:          enums.OrderTypeSale,
			Status:        enums.OrderStatusPendingPayment,
			TotalAmount:   in.Amount,
			CurrencyCode:  in.CurrencyCode,
			BusinessID:    in.BusinessID,
			CustomerID:    in.CustomerID,
			PaymentMethod: &method,
		}, in.CustomerID.String())
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertOrder assigns an id, generates a unique order number (retrying on a
// collision) and writes the order plus its initial history row.
func (s *service) insertOrder(ctx context.Context, repo Repository, order *models.Order, triggeredBy string) (*models.Order, error) {
	order.ID = uuid.New()

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = newOrderNumber()
		if err := repo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				lastErr = err
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create order")
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "failed to allocate order number")
	}

	if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Status:      order.Status,
		TriggeredBy: triggeredBy,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record order history")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	return order, nil
}

func (s *service) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.UpdateStatusTx(ctx, tx, in)
		if err != nil {
			return err
		}
		order = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) UpdateStatusTx(ctx context.Context, tx *gorm.DB, in UpdateStatusInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction handle is required")
	}
	if in.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !in.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	triggeredBy := strings.TrimSpace(in.TriggeredBy)
	if triggeredBy == "" {
		triggeredBy = TriggeredBySystem
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}

	if !CanTransition(order.Status, in.NewStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("illegal transition %s -> %s for order %s", order.Status, in.NewStatus, order.OrderNumber))
	}

	if err := repo.UpdateStatus(ctx, order.ID, in.NewStatus); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update order status")
	}

	notes := in.Notes
	if in.RelatedTransactionID != nil {
		note := fmt.Sprintf("payment transaction %s", in.RelatedTransactionID)
		if notes != nil {
			note = *notes + "; " + note
		}
		notes = &note
	}
	if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Status:      in.NewStatus,
		TriggeredBy: triggeredBy,
		Notes:       notes,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record order history")
	}

	order.Status = in.NewStatus
	return order, nil
}

func validateCreate(in CreateOrderInput, actor uuid.UUID) error {
	if !in.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if in.BusinessID == uuid.Nil || in.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "business and customer are required")
	}
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "acting user is required")
	}
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}
	for _, line := range in.Lines {
		if line.VariantID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line variant id is required")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	if in.PaymentMethod != nil && !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if in.Type == enums.OrderTypeReservation && in.ReservationDate == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation orders require a reservation date")
	}
	return nil
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
