package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductVariant is the sellable unit. QuantityInStock is a materialized
// cache over the variant's open batches; it is only mutated by the stock
// ledger in the same transaction as the batch rows themselves.
type ProductVariant struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID      uuid.UUID       `gorm:"column:business_id;type:uuid;not null;index"`
	Name            string          `gorm:"column:name;not null"`
	SKU             string          `gorm:"column:sku;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null"`
	PurchasePrice   decimal.Decimal `gorm:"column:purchase_price;type:numeric(14,2);not null;default:0"`
	QuantityInStock int             `gorm:"column:quantity_in_stock;not null;default:0"`
	Batches         []ProductBatch  `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
