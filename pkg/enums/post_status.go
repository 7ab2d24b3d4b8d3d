package enums

import "fmt"

// PostStatus tracks a buyer request-for-offers. A post closes when one of its
// offers is accepted; closed is terminal within the payment flow.
type PostStatus string

const (
	PostStatusOpen   PostStatus = "open"
	PostStatusClosed PostStatus = "closed"
)

var validPostStatuses = []PostStatus{
	PostStatusOpen,
	PostStatusClosed,
}

// String implements fmt.Stringer.
func (p PostStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PostStatus.
func (p PostStatus) IsValid() bool {
	for _, candidate := range validPostStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePostStatus converts raw input into a PostStatus.
func ParsePostStatus(value string) (PostStatus, error) {
	for _, candidate := range validPostStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid post status %q", value)
}
