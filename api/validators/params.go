package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

// ParseIDParam reads a positive integer chi URL parameter.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "missing path parameter").WithDetails(map[string]any{"field": name})
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive integer").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
