package order

// Status is the delivery/payment pipeline stage of an order. Ordinals are
// part of the storage format and the public API.
type Status int

const (
	StatusPendingPayment Status = iota // 0
	StatusConfirmed                    // 1
	StatusProcessing                   // 2
	StatusPacked                       // 3
	StatusShipped                      // 4
	StatusOutForDelivery               // 5
	StatusDelivered                    // 6
	StatusCancelled                    // 7
	StatusReturned                     // 8
	StatusRefunded                     // 9
)

var statusLabels = map[Status]string{
	StatusPendingPayment: "Pending Payment",
	StatusConfirmed:      "Confirmed",
	StatusProcessing:     "Processing",
	StatusPacked:         "Packed",
	StatusShipped:        "Shipped",
	StatusOutForDelivery: "Out for Delivery",
	StatusDelivered:      "Delivered",
	StatusCancelled:      "Cancelled",
	StatusReturned:       "Returned",
	StatusRefunded:       "Refunded",
}

// Label returns the human-readable status name recorded on status events.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// Valid reports whether s is a known status ordinal.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
// Delivered is not terminal: returns and refunds happen post-delivery.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// Shipped reports whether the order has left the warehouse.
func (s Status) Shipped() bool {
	return s >= StatusShipped && s <= StatusDelivered
}

// notifiable statuses trigger a best-effort customer notification.
func (s Status) notifiable() bool {
	switch s {
	case StatusShipped, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// canTransition applies the state machine rules for operator and system
// driven changes. Payment confirmation (PendingPayment -> Confirmed) and
// cancellation are validated separately since they carry their own guards.
func canTransition(from, to Status) error {
	if from.Terminal() {
		return &InvalidTransitionError{From: from, To: to}
	}

	switch {
	case to >= StatusProcessing && to <= StatusDelivered:
		// Forward only through the delivery pipeline; skipping ahead is
		// allowed, going backwards is not. Unpaid orders never advance.
		if from < StatusConfirmed || from >= to || from > StatusOutForDelivery {
			return &InvalidTransitionError{From: from, To: to}
		}
		return nil
	case to == StatusReturned:
		if from != StatusDelivered {
			return &InvalidTransitionError{From: from, To: to}
		}
		return nil
	case to == StatusRefunded:
		if from != StatusDelivered && from != StatusReturned {
			return &InvalidTransitionError{From: from, To: to}
		}
		return nil
	default:
		return &InvalidTransitionError{From: from, To: to}
	}
}
