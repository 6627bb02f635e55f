package types

// SuccessEnvelope wraps admin and pairing responses.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// DeviceErrorEnvelope is the failure body for kiosk devices, which branch on ok
// rather than on the HTTP status.
type DeviceErrorEnvelope struct {
	OK    bool     `json:"ok"`
	Error APIError `json:"error"`
}
