package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/types"
)

// WriteSuccess writes an admin payload inside {"data": ...}.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteDevice writes a device or pairing payload as-is. Those results carry
// their own ok field.
func WriteDevice(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	status, apiErr := resolve(ctx, logg, err)
	writeJSON(w, status, types.ErrorEnvelope{Error: apiErr})
}

// WriteDeviceError is WriteError with the {"ok": false} body devices branch on.
func WriteDeviceError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	status, apiErr := resolve(ctx, logg, err)
	writeJSON(w, status, types.DeviceErrorEnvelope{OK: false, Error: apiErr})
}

func resolve(ctx context.Context, logg *logger.Logger, err error) (int, types.APIError) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
	default:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	apiErr := types.APIError{Code: string(typed.Code()), Message: msg}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			apiErr.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error":         dump.TopMessage,
			"error_code":    dump.Code,
			"error_chain":   dump.Chain,
			"http_status":   meta.HTTPStatus,
			"pg_code":       dump.PGCode,
			"pg_detail":     dump.PGDetail,
			"pg_constraint": dump.PGConstraint,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.error")
		}
	}
	return meta.HTTPStatus, apiErr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
