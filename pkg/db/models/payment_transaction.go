package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// PaymentTransaction is one attempt against a provider (or a manual
// confirmation). ProviderTransactionID is unique per provider and is the
// idempotency key for webhook reconciliation. Rows are appended per attempt;
// only Status moves, and only from PENDING to a terminal value.
type PaymentTransaction struct {
	ID                    uuid.UUID                      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID                      `gorm:"column:order_id;type:uuid;not null;index"`
	Amount                decimal.Decimal                `gorm:"column:amount;type:numeric(14,2);not null"`
	CurrencyCode          string                         `gorm:"column:currency_code;not null"`
	Provider              enums.PaymentProvider          `gorm:"column:provider;type:text;not null;uniqueIndex:idx_payment_tx_provider_ref"`
	ProviderTransactionID string                         `gorm:"column:provider_transaction_id;not null;uniqueIndex:idx_payment_tx_provider_ref"`
	Status                enums.PaymentTransactionStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Metadata              json.RawMessage                `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}
