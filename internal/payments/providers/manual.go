package providers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// Manual is the offline provider: cash, bank transfer, anything settled
// outside the platform. There is no provider round-trip; a staff member
// confirms the payment explicitly.
type Manual struct{}

// NewManual builds the manual provider.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) ID() enums.PaymentProvider {
	return enums.PaymentProviderManual
}

func (m *Manual) CreateIntent(ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}
	return &payments.IntentResult{
		ProviderTransactionID: "manual_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}, nil
}

func (m *Manual) ParseWebhook(payload []byte, headers http.Header) (*payments.WebhookEvent, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual provider does not deliver webhooks")
}

func (m *Manual) SupportsManualConfirm() bool {
	return true
}

// Refund records the reversal only; moving the money back is an offline act.
func (m *Manual) Refund(ctx context.Context, in payments.RefundInput) (*payments.RefundResult, error) {
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	return &payments.RefundResult{
		ProviderRefundID: "re_manual_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}, nil
}
