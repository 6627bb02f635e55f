package enums

import "fmt"

// QrAuthStatus tracks a pairing session. Every state but PENDING is terminal.
type QrAuthStatus string

const (
	QrAuthStatusPending   QrAuthStatus = "PENDING"
	QrAuthStatusVerified  QrAuthStatus = "VERIFIED"
	QrAuthStatusExpired   QrAuthStatus = "EXPIRED"
	QrAuthStatusCancelled QrAuthStatus = "CANCELLED"
)

var validQrAuthStatuses = []QrAuthStatus{
	QrAuthStatusPending,
	QrAuthStatusVerified,
	QrAuthStatusExpired,
	QrAuthStatusCancelled,
}

// String implements fmt.Stringer.
func (s QrAuthStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known QrAuthStatus.
func (s QrAuthStatus) IsValid() bool {
	for _, candidate := range validQrAuthStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s QrAuthStatus) IsTerminal() bool {
	return s.IsValid() && s != QrAuthStatusPending
}

// ParseQrAuthStatus converts raw input into a QrAuthStatus.
func ParseQrAuthStatus(value string) (QrAuthStatus, error) {
	for _, candidate := range validQrAuthStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid qr auth status %q", value)
}
