package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// StockMovement is an append-only audit row recording one atomic stock
// change. NewQuantity snapshots the variant's cached total after the change.
type StockMovement struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID      uuid.UUID          `gorm:"column:variant_id;type:uuid;not null;index"`
	BusinessID     uuid.UUID          `gorm:"column:business_id;type:uuid;not null;index"`
	PerformedByID  uuid.UUID          `gorm:"column:performed_by_id;type:uuid;not null"`
	Type           enums.MovementType `gorm:"column:type;type:text;not null"`
	QuantityChange int                `gorm:"column:quantity_change;not null"`
	NewQuantity    int                `gorm:"column:new_quantity;not null"`
	Reason         string             `gorm:"column:reason;not null"`
	OrderID        *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}
