package enums

import "fmt"

// PaymentTransactionStatus tracks a single payment attempt against a provider.
type PaymentTransactionStatus string

const (
	PaymentTransactionStatusPending  PaymentTransactionStatus = "PENDING"
	PaymentTransactionStatusSuccess  PaymentTransactionStatus = "SUCCESS"
	PaymentTransactionStatusFailed   PaymentTransactionStatus = "FAILED"
	PaymentTransactionStatusRefunded PaymentTransactionStatus = "REFUNDED"
)

var validPaymentTransactionStatuses = []PaymentTransactionStatus{
	PaymentTransactionStatusPending,
	PaymentTransactionStatusSuccess,
	PaymentTransactionStatusFailed,
	PaymentTransactionStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentTransactionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentTransactionStatus.
func (p PaymentTransactionStatus) IsValid() bool {
	for _, candidate := range validPaymentTransactionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the transaction lifecycle.
// Webhook reconciliation keys its idempotency off this check.
func (p PaymentTransactionStatus) IsTerminal() bool {
	switch p {
	case PaymentTransactionStatusSuccess, PaymentTransactionStatusFailed, PaymentTransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// ParsePaymentTransactionStatus converts raw input into a PaymentTransactionStatus.
func ParsePaymentTransactionStatus(value string) (PaymentTransactionStatus, error) {
	for _, candidate := range validPaymentTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment transaction status %q", value)
}
