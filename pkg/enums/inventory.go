package enums

import "fmt"

// InventoryMode selects how a device inventory push is reconciled.
type InventoryMode string

const (
	// InventoryModePartial touches only the submitted slots.
	InventoryModePartial InventoryMode = "partial"
	// InventoryModeReplace zeroes every bound slot missing from the submission.
	InventoryModeReplace InventoryMode = "replace"
)

var validInventoryModes = []InventoryMode{
	InventoryModePartial,
	InventoryModeReplace,
}

// String implements fmt.Stringer.
func (m InventoryMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known InventoryMode.
func (m InventoryMode) IsValid() bool {
	for _, candidate := range validInventoryModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseInventoryMode converts raw input into an InventoryMode.
func ParseInventoryMode(value string) (InventoryMode, error) {
	for _, candidate := range validInventoryModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory mode %q", value)
}
