package orders

import "github.com/mercanto-labs/mercanto-backend/pkg/enums"

// allowedTransitions is the order status machine. CONFIRMED is only reachable
// for reservation orders; PAYMENT_FAILED may return to PENDING_PAYMENT so a
// customer can retry with another provider.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPaid,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelled,
		enums.OrderStatusConfirmed,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusCompleted,
		enums.OrderStatusDelivered,
		enums.OrderStatusPartiallyRefunded,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusPartiallyRefunded: {
		enums.OrderStatusPartiallyRefunded,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusConfirmed: {
		enums.OrderStatusCancelled,
		enums.OrderStatusRejected,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusPendingPayment,
	},
}

// CanTransition reports whether moving from one order status to another is
// legal.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
