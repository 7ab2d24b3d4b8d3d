package enums

import "fmt"

// LedgerEventType labels immutable money lifecycle rows recorded per order.
type LedgerEventType string

const (
	LedgerEventEscrowHeld      LedgerEventType = "escrow_held"
	LedgerEventEscrowReleased  LedgerEventType = "escrow_released"
	LedgerEventPaymentCaptured LedgerEventType = "payment_captured"
	LedgerEventPaymentFailed   LedgerEventType = "payment_failed"
	LedgerEventCashCollected   LedgerEventType = "cash_collected"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventEscrowHeld,
	LedgerEventEscrowReleased,
	LedgerEventPaymentCaptured,
	LedgerEventPaymentFailed,
	LedgerEventCashCollected,
}

// String implements fmt.Stringer.
func (l LedgerEventType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEventType.
func (l LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into a LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
