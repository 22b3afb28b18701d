package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds one user's balance. Balance is the materialized sum of the
// wallet's COMPLETED transactions and is only mutated in the same
// transaction that appends the ledger row.
type Wallet struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	CurrencyCode string              `gorm:"column:currency_code;not null"`
	Balance      decimal.Decimal     `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	Transactions []WalletTransaction `gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
