package enums

import "fmt"

// OrderItemStatus tracks the escrow lifecycle of a single order item.
type OrderItemStatus string

const (
	OrderItemStatusAwaitingEscrow OrderItemStatus = "awaiting_escrow"
	OrderItemStatusEscrowLocked   OrderItemStatus = "escrow_locked"
	OrderItemStatusShipping       OrderItemStatus = "shipping"
	OrderItemStatusComplete       OrderItemStatus = "complete"
	OrderItemStatusRejected       OrderItemStatus = "rejected"
	OrderItemStatusCancelled      OrderItemStatus = "cancelled"
	OrderItemStatusRefunded       OrderItemStatus = "refunded"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusAwaitingEscrow,
	OrderItemStatusEscrowLocked,
	OrderItemStatusShipping,
	OrderItemStatusComplete,
	OrderItemStatusRejected,
	OrderItemStatusCancelled,
	OrderItemStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderItemStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions can leave this status.
func (o OrderItemStatus) IsTerminal() bool {
	switch o {
	case OrderItemStatusComplete, OrderItemStatusRejected, OrderItemStatusCancelled, OrderItemStatusRefunded:
		return true
	default:
		return false
	}
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
