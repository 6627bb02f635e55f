package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

// ParseOptionalQueryID reads a positive id filter such as ?store_id=3.
func ParseOptionalQueryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryInt reads an optional bounded integer such as ?limit=20.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}
