package enums

import (
	"fmt"
	"strings"
)

// PlanKey is the public identifier clients use to pick a plan.
type PlanKey string

const (
	PlanKeyFree      PlanKey = "free"
	PlanKeySmallTeam PlanKey = "smallteam"
	PlanKeyBigTeam   PlanKey = "bigteam"
)

var validPlanKeys = []PlanKey{
	PlanKeyFree,
	PlanKeySmallTeam,
	PlanKeyBigTeam,
}

// planNames maps each key to the display name stored on the plan row. The
// billing provider's product names must match these exactly.
var planNames = map[PlanKey]string{
	PlanKeyFree:      "Free",
	PlanKeySmallTeam: "Small Team",
	PlanKeyBigTeam:   "Big Team",
}

// String implements fmt.Stringer.
func (p PlanKey) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanKey.
func (p PlanKey) IsValid() bool {
	for _, candidate := range validPlanKeys {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the plan is billed through checkout.
func (p PlanKey) IsPaid() bool {
	return p == PlanKeySmallTeam || p == PlanKeyBigTeam
}

// PlanName returns the plan row name for the key.
func (p PlanKey) PlanName() string {
	return planNames[p]
}

// PlanKeys returns every known key in catalog order.
func PlanKeys() []PlanKey {
	keys := make([]PlanKey, len(validPlanKeys))
	copy(keys, validPlanKeys)
	return keys
}

// ParsePlanKey converts raw input into a PlanKey.
func ParsePlanKey(value string) (PlanKey, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPlanKeys {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan key %q", value)
}

// PlanKeyForName resolves the key whose plan name matches exactly.
func PlanKeyForName(name string) (PlanKey, bool) {
	for key, candidate := range planNames {
		if candidate == name {
			return key, true
		}
	}
	return "", false
}
