package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// WalletTransaction is an append-only signed ledger row. Amount carries the
// sign (credits positive, debits negative); only COMPLETED rows count toward
// the wallet balance.
type WalletTransaction struct {
	ID                          uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID                    uuid.UUID                     `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type                        enums.WalletTransactionType   `gorm:"column:type;type:text;not null"`
	Amount                      decimal.Decimal               `gorm:"column:amount;type:numeric(14,2);not null"`
	Status                      enums.WalletTransactionStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Description                 string                        `gorm:"column:description;not null"`
	RelatedOrderID              *uuid.UUID                    `gorm:"column:related_order_id;type:uuid"`
	RelatedPaymentTransactionID *uuid.UUID                    `gorm:"column:related_payment_transaction_id;type:uuid"`
	CreatedAt                   time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}
