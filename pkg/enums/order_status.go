package enums

import "fmt"

// OrderStatus tracks an order through payment and fulfillment.
type OrderStatus string

const (
	OrderStatusPendingPayment    OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid              OrderStatus = "PAID"
	OrderStatusPaymentFailed     OrderStatus = "PAYMENT_FAILED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusCompleted         OrderStatus = "COMPLETED"
	OrderStatusDelivered         OrderStatus = "DELIVERED"
	OrderStatusPartiallyRefunded OrderStatus = "PARTIALLY_REFUNDED"
	OrderStatusRefunded          OrderStatus = "REFUNDED"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusRejected          OrderStatus = "REJECTED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusPaymentFailed,
	OrderStatusCancelled,
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusPartiallyRefunded,
	OrderStatusRefunded,
	OrderStatusConfirmed,
	OrderStatusRejected,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
