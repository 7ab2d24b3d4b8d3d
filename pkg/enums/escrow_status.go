package enums

import "fmt"

// EscrowStatus tracks held seller funds until an administrative release.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusReleased,
}

// String implements fmt.Stringer.
func (e EscrowStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowStatus.
func (e EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into an EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}
