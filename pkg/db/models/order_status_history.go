package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// OrderStatusHistory records every order status transition. TriggeredBy is a
// user id or the literal "system" for webhook-driven changes.
type OrderStatusHistory struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null"`
	TriggeredBy string            `gorm:"column:triggered_by;not null"`
	Notes       *string           `gorm:"column:notes"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the singular ledger table name; gorm would pluralize the
// struct name to order_status_histories otherwise.
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
