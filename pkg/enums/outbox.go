package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateEscrow      OutboxAggregateType = "escrow_payout"
	AggregatePost        OutboxAggregateType = "post"
	AggregateOffer       OutboxAggregateType = "offer"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateTransaction,
	AggregateEscrow,
	AggregatePost,
	AggregateOffer,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPurchaseCompleted OutboxEventType = "purchase_completed"
	EventPaymentSucceeded  OutboxEventType = "payment_succeeded"
	EventPaymentFailed     OutboxEventType = "payment_failed"
	EventOrderConfirmed    OutboxEventType = "order_confirmed"
	EventOrderDelivered    OutboxEventType = "order_delivered"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventOfferAccepted     OutboxEventType = "offer_accepted"
	EventPostClosed        OutboxEventType = "post_closed"
	EventEscrowReleased    OutboxEventType = "escrow_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseCompleted,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventOrderConfirmed,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOfferAccepted,
	EventPostClosed,
	EventEscrowReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
