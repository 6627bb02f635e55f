package enums

import "fmt"

// StoreStatus is the operating state of a store.
type StoreStatus string

const (
	StoreStatusActive   StoreStatus = "ACTIVE"
	StoreStatusInactive StoreStatus = "INACTIVE"
)

var validStoreStatuses = []StoreStatus{
	StoreStatusActive,
	StoreStatusInactive,
}

// String implements fmt.Stringer.
func (s StoreStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StoreStatus.
func (s StoreStatus) IsValid() bool {
	for _, candidate := range validStoreStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStoreStatus converts raw input into a StoreStatus.
func ParseStoreStatus(value string) (StoreStatus, error) {
	for _, candidate := range validStoreStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid store status %q", value)
}

// KioskLogStatus labels a kiosk status log row.
type KioskLogStatus string

const (
	KioskLogStatusOnline KioskLogStatus = "ONLINE"
)
