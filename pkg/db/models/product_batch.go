package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductBatch is a lot of a variant received together. A nil expiration
// means the lot never expires and is consumed last by FEFO depletion.
// Quantity never goes negative; emptied batches are kept for audit.
type ProductBatch struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VariantID      uuid.UUID  `gorm:"column:variant_id;type:uuid;not null;index"`
	Quantity       int        `gorm:"column:quantity;not null;default:0"`
	ExpirationDate *time.Time `gorm:"column:expiration_date"`
	ReceivedAt     time.Time  `gorm:"column:received_at;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
