package enums

import "fmt"

// CheckoutSessionStatus tracks a hosted checkout from creation to completion.
type CheckoutSessionStatus string

const (
	CheckoutSessionStatusPending   CheckoutSessionStatus = "pending"
	CheckoutSessionStatusCompleted CheckoutSessionStatus = "completed"
	CheckoutSessionStatusExpired   CheckoutSessionStatus = "expired"
)

var validCheckoutSessionStatuses = []CheckoutSessionStatus{
	CheckoutSessionStatusPending,
	CheckoutSessionStatusCompleted,
	CheckoutSessionStatusExpired,
}

// String implements fmt.Stringer.
func (s CheckoutSessionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutSessionStatus.
func (s CheckoutSessionStatus) IsValid() bool {
	for _, candidate := range validCheckoutSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCheckoutSessionStatus converts raw input into a CheckoutSessionStatus.
func ParseCheckoutSessionStatus(value string) (CheckoutSessionStatus, error) {
	for _, candidate := range validCheckoutSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout session status %q", value)
}
