package controllers

import (
	"errors"
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

const screensaverFormField = "file"

type screensaverURLRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

func AdminListKioskProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListKioskProducts(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminUpdateKioskProduct edits one kiosk's snapshot without touching the
// master product.
func AdminUpdateKioskProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseIDParam(r, "kioskProductId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateKioskProduct(r.Context(), kioskID, productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminListScreensaver(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListScreensaver(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminUploadScreensaver accepts a multipart "file" capped at maxBytes.
func AdminUploadScreensaver(svc catalog.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		file, header, err := r.FormFile(screensaverFormField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"max_bytes": maxBytes}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field \"file\" is required"))
			return
		}
		defer file.Close()

		image, err := svc.UploadScreensaver(r.Context(), kioskID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, image)
	}
}

func AdminAddScreensaverURL(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload screensaverURLRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		image, err := svc.AddScreensaverURL(r.Context(), kioskID, payload.ImageURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, image)
	}
}

func AdminDeleteScreensaver(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		imageID, err := validators.ParseIDParam(r, "imageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteScreensaver(r.Context(), kioskID, imageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true, "image_id": imageID})
	}
}
