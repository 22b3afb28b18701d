package payments

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
)

// CreateIntentInput is handed to a provider to open a payment session.
type CreateIntentInput struct {
	OrderID      uuid.UUID
	OrderNumber  string
	CustomerID   uuid.UUID
	Amount       decimal.Decimal
	CurrencyCode string
	Metadata     map[string]string
}

// IntentResult is the provider's normalized answer to CreateIntent.
type IntentResult struct {
	ProviderTransactionID string
	RedirectURL           string
	Raw                   json.RawMessage
}

// WebhookEvent is the normalized, signature-verified content of a provider
// notification.
type WebhookEvent struct {
	OrderID               uuid.UUID
	ProviderTransactionID string
	Status                enums.PaymentTransactionStatus
	Amount                *decimal.Decimal
}

// RefundInput asks a provider to return funds for a prior transaction.
type RefundInput struct {
	ProviderTransactionID string
	Amount                decimal.Decimal
	CurrencyCode          string
}

// RefundResult identifies the provider-side refund.
type RefundResult struct {
	ProviderRefundID string
}

// PaymentResult is returned to callers of CreatePayment.
type PaymentResult struct {
	OrderID               uuid.UUID
	Provider              enums.PaymentProvider
	ProviderTransactionID string
	RedirectURL           string
	Amount                decimal.Decimal
	CurrencyCode          string
}
