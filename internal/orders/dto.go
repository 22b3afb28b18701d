package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// CreateOrderLineInput is one requested line. The price is always snapshotted
// server-side from the catalog; clients never supply one.
type CreateOrderLineInput struct {
	VariantID uuid.UUID
	Quantity  int
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	Type                 enums.OrderType
	BusinessID           uuid.UUID
	CustomerID           uuid.UUID
	CurrencyCode         string
	PurchasingBusinessID *uuid.UUID
	EmployeeID           *uuid.UUID
	TableID              *uuid.UUID
	ReservationDate      *time.Time
	PaymentMethod        *enums.PaymentProvider
	Lines                []CreateOrderLineInput
}

// DepositOrderInput creates a synthetic sale against the platform business
// representing a wallet deposit. It carries an explicit total and no lines.
type DepositOrderInput struct {
	BusinessID    uuid.UUID
	CustomerID    uuid.UUID
	Amount        decimal.Decimal
	CurrencyCode  string
	PaymentMethod enums.PaymentProvider
}

// UpdateStatusInput drives one status transition.
type UpdateStatusInput struct {
	OrderID              uuid.UUID
	NewStatus            enums.OrderStatus
	TriggeredBy          string
	Notes                *string
	RelatedTransactionID *uuid.UUID
}
