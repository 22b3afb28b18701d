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

// CardSignatureHeader carries the card provider's webhook HMAC.
const CardSignatureHeader = "X-Card-Signature"

// Card is the hosted card/online provider. Intents open a hosted checkout
// session; completion arrives asynchronously on the webhook.
type Card struct {
	cfg config.CardProviderConfig
}

// NewCard builds the card provider from injected credentials.
func NewCard(cfg config.CardProviderConfig) (*Card, error) {
	if cfg.APIKey == "" || cfg.WebhookSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card provider credentials are required")
	}
	return &Card{cfg: cfg}, nil
}

func (c *Card) ID() enums.PaymentProvider {
	return enums.PaymentProviderCard
}

func (c *Card) CreateIntent(ctx context.Context, in payments.CreateIntentInput) (*payments.IntentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}

	intentID := "pi_card_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	raw, err := json.Marshal(map[string]any{
		"intent_id": intentID,
		"order":     in.OrderNumber,
		"amount":    in.Amount.String(),
		"currency":  in.CurrencyCode,
		"metadata":  in.Metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode intent payload")
	}

	redirect := ""
	if c.cfg.CheckoutURL != "" {
		redirect = fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.CheckoutURL, "/"), intentID)
	}
	return &payments.IntentResult{
		ProviderTransactionID: intentID,
		RedirectURL:           redirect,
		Raw:                   raw,
	}, nil
}

func (c *Card) ParseWebhook(payload []byte, headers http.Header) (*payments.WebhookEvent, error) {
	return parseSignedWebhook(c.ID(), payload, c.cfg.WebhookSecret, headers.Get(CardSignatureHeader))
}

func (c *Card) SupportsManualConfirm() bool {
	return false
}

func (c *Card) Refund(ctx context.Context, in payments.RefundInput) (*payments.RefundResult, error) {
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	return &payments.RefundResult{
		ProviderRefundID: "re_card_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}, nil
}

// SignWebhook produces the signature header value for a payload, used by
// tests and local webhook replay tooling.
func (c *Card) SignWebhook(payload []byte) string {
	return signPayload(payload, c.cfg.WebhookSecret)
}
