package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercanto-labs/mercanto-backend/internal/payments"
	"github.com/mercanto-labs/mercanto-backend/pkg/enums"
	pkgerrors "github.com/mercanto-labs/mercanto-backend/pkg/errors"
)

// webhookPayload is the common notification shape used by the hosted
// providers.
type webhookPayload struct {
	OrderID       string           `json:"order_id"`
	TransactionID string           `json:"transaction_id"`
	Status        string           `json:"status"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

func verifySignature(payload []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// signPayload computes the hex HMAC-SHA256 signature a provider would attach.
// Exported for tests and local tooling via the provider constructors only.
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignedWebhook(provider enums.PaymentProvider, payload []byte, secret, signature string) (*payments.WebhookEvent, error) {
	if !verifySignature(payload, secret, signature) {
		return nil, payments.ErrInvalidSignature(provider)
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}

	orderID, err := uuid.Parse(body.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook order id is not a uuid")
	}
	if body.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook transaction id is required")
	}

	status, err := mapWebhookStatus(body.Status)
	if err != nil {
		return nil, err
	}

	return &payments.WebhookEvent{
		OrderID:               orderID,
		ProviderTransactionID: body.TransactionID,
		Status:                status,
		Amount:                body.Amount,
	}, nil
}

func mapWebhookStatus(value string) (enums.PaymentTransactionStatus, error) {
	switch value {
	case "succeeded":
		return enums.PaymentTransactionStatusSuccess, nil
	case "failed":
		return enums.PaymentTransactionStatusFailed, nil
	case "refunded":
		return enums.PaymentTransactionStatusRefunded, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown webhook status %q", value))
	}
}
