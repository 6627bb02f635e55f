package controllers

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/middleware"
	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/qrauth"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

type pairRequest struct {
	PairCode4 string `json:"pair_code_4" validate:"required"`
}

// QrAuthCreateSession is called by the kiosk when it shows its pairing QR.
func QrAuthCreateSession(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}

		var payload qrauth.CreateSessionInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), payload)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusCreated, result)
	}
}

// QrAuthStatus is polled by the kiosk; reading an overdue session expires it.
func QrAuthStatus(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}
		sessionID, err := validators.ParseIDParam(r, "sessionId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Status(r.Context(), sessionID)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func QrAuthComplete(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}
		sessionID, err := validators.ParseIDParam(r, "sessionId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		var payload qrauth.CompleteInput
		if err := validators.DecodeDeviceBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Complete(r.Context(), sessionID, payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func QrAuthCancel(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}
		sessionID, err := validators.ParseIDParam(r, "sessionId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), sessionID)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

// QrAuthPair resolves the 4-digit code typed on the customer's phone.
func QrAuthPair(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}

		var payload pairRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.FindLatestPendingByPairCode(r.Context(), payload.PairCode4)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func QrAuthSendCode(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}
		sessionID, err := validators.ParseIDParam(r, "sessionId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		var payload qrauth.SendCodeInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		payload.ClientIP = middleware.ClientIP(r)

		result, err := svc.SendPhoneAuthCode(r.Context(), sessionID, payload)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func QrAuthVerifyCode(svc qrauth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pairing unavailable"))
			return
		}
		sessionID, err := validators.ParseIDParam(r, "sessionId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		var payload qrauth.VerifyCodeInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		payload.ClientIP = middleware.ClientIP(r)

		result, err := svc.VerifyPhoneAuthCode(r.Context(), sessionID, payload)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}
