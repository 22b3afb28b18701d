package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// Order is the aggregate root for a sale, purchase or reservation. Lines and
// status history are exclusively owned; history rows are append-only.
type Order struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber          string                 `gorm:"column:order_number;uniqueIndex;not null"`
	Type                 enums.OrderType        `gorm:"column:type;type:text;not null"`
	Status               enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'PENDING_PAYMENT'"`
	TotalAmount          decimal.Decimal        `gorm:"column:total_amount;type:numeric(14,2);not null"`
	CurrencyCode         string                 `gorm:"column:currency_code;not null;default:'USD'"`
	BusinessID           uuid.UUID              `gorm:"column:business_id;type:uuid;not null;index"`
	CustomerID           uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	PurchasingBusinessID *uuid.UUID             `gorm:"column:purchasing_business_id;type:uuid"`
	EmployeeID           *uuid.UUID             `gorm:"column:employee_id;type:uuid"`
	TableID              *uuid.UUID             `gorm:"column:table_id;type:uuid"`
	ReservationDate      *time.Time             `gorm:"column:reservation_date"`
	PaymentMethod        *enums.PaymentProvider `gorm:"column:payment_method;type:text"`
	PaymentIntentID      *string                `gorm:"column:payment_intent_id"`
	Lines                []OrderLine            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory        []OrderStatusHistory   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
