package controllers

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/stores"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

type createStoreRequest struct {
	Code            string  `json:"code" validate:"required,max=32"`
	Name            string  `json:"name" validate:"required,max=100"`
	CSPhone         *string `json:"cs_phone,omitempty"`
	InstallLocation *string `json:"install_location,omitempty"`
	Address         *string `json:"address,omitempty"`
}

func AdminCreateStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		var payload createStoreRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.Create(r.Context(), stores.CreateStoreInput{
			Code:            payload.Code,
			Name:            payload.Name,
			CSPhone:         payload.CSPhone,
			InstallLocation: payload.InstallLocation,
			Address:         payload.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, store)
	}
}

func AdminListStores(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminGetStore(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}
		storeID, err := validators.ParseIDParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.GetByID(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}
