package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/config"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// MobileMoneySignatureHeader carries the mobile money webhook HMAC.
const MobileMoneySignatureHeader = "X-Momo-Signature"

// MobileMoney is the mobile money provider. Funds move on the customer's
// handset; the result arrives on the webhook. The network offers no refund
// API, so refunds are rejected.
type MobileMoney struct {
	cfg config.MobileMoneyProviderConfig
}

// NewMobileMoney builds the mobile money provider from injected credentials.
func NewMobileMoney(cfg config.MobileMoneyProviderConfig) (*MobileMoney, error) {
	if cfg.APIKey == "" || cfg.WebhookSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mobile money provider credentials are required")
	}
	return &MobileMoney{cfg: cfg}, nil
}

func (m *MobileMoney) ID() enums.PaymentProvider {
	return enums.PaymentProviderMobileMoney
}

func (m *MobileMoney) CreateIntent(ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}

	intentID := "pi_momo_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	raw, err := json.Marshal(map[string]any{
		"intent_id": intentID,
		"order":     in.OrderNumber,
		"amount":    in.Amount.String(),
		"currency":  in.CurrencyCode,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode intent payload")
	}

	redirect := ""
	if m.cfg.CheckoutURL != "" {
		redirect = fmt.Sprintf("%s/%s", strings.TrimRight(m.cfg.CheckoutURL, "/"), intentID)
	}
	return &payments.IntentResult{
		ProviderTransactionID: intentID,
		RedirectURL:           redirect,
		Raw:                   raw,
	}, nil
}

func (m *MobileMoney) ParseWebhook(payload []byte, headers http.Header) (*payments.WebhookEvent, error) {
	return parseSignedWebhook(m.ID(), payload, m.cfg.WebhookSecret, headers.Get(MobileMoneySignatureHeader))
}

func (m *MobileMoney) SupportsManualConfirm() bool {
	return false
}

func (m *MobileMoney) Refund(ctx context.Context, in payments.RefundInput) (*payments.RefundResult, error) {
	return nil, payments.ErrRefundNotSupported(m.ID())
}

// SignWebhook produces the signature header value for a payload, used by
// tests and local webhook replay tooling.
func (m *MobileMoney) SignWebhook(payload []byte) string {
	return signPayload(payload, m.cfg.WebhookSecret)
}
