package controllers

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/pagination"
)

type createKioskRequest struct {
	StoreID        int64   `json:"store_id" validate:"required,gt=0"`
	Code           string  `json:"code" validate:"required,max=32"`
	Name           string  `json:"name" validate:"required,max=100"`
	LocationHint   *string `json:"location_hint,omitempty"`
	KioskPassword  *string `json:"kiosk_password,omitempty" validate:"omitempty,max=32"`
	GenerateAPIKey bool    `json:"generate_api_key"`
}

type updateKioskRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	LocationHint  *string `json:"location_hint,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
	KioskPassword *string `json:"kiosk_password,omitempty" validate:"omitempty,max=32"`
}

// kioskDetail is the admin kiosk page: identity plus the slot grid and
// screensaver rotation.
type kioskDetail struct {
	*kiosks.KioskDTO
	Slots       []catalog.SlotDTO        `json:"slots"`
	Screensaver []catalog.ScreenImageDTO `json:"screensaver"`
}

func AdminCreateKiosk(svc kiosks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}

		var payload createKioskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kiosk, err := svc.Create(r.Context(), kiosks.CreateKioskInput{
			StoreID:        payload.StoreID,
			Code:           payload.Code,
			Name:           payload.Name,
			LocationHint:   payload.LocationHint,
			KioskPassword:  payload.KioskPassword,
			GenerateAPIKey: payload.GenerateAPIKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, kiosk)
	}
}

func AdminListKiosks(svc kiosks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}
		storeID, err := validators.ParseOptionalQueryID(r, "store_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminGetKiosk(svc kiosks.Service, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || catalogSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kiosk, err := svc.Get(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slots, err := catalogSvc.ListSlots(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		images, err := catalogSvc.ListScreensaver(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, kioskDetail{KioskDTO: kiosk, Slots: slots, Screensaver: images})
	}
}

// AdminUpdateKiosk bumps config_version for name and password edits; an
// is_active toggle alone does not.
func AdminUpdateKiosk(svc kiosks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateKioskRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kiosk, err := svc.Update(r.Context(), kioskID, kiosks.UpdateKioskInput{
			Name:          payload.Name,
			LocationHint:  payload.LocationHint,
			IsActive:      payload.IsActive,
			KioskPassword: payload.KioskPassword,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, kiosk)
	}
}

func AdminRotateKioskAPIKey(svc kiosks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kiosk, err := svc.RotateAPIKey(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, kiosk)
	}
}

// AdminListKioskLogs pages through heartbeat audit entries, newest first.
// Pass next_cursor back as ?cursor= for the following page.
func AdminListKioskLogs(svc kiosks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kiosk service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListStatusLogs(r.Context(), kioskID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
