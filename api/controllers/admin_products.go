package controllers

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

type createProductRequest struct {
	Code        string  `json:"code" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	Category    *string `json:"category,omitempty"`
	Price       int64   `json:"price" validate:"gte=0"`
	IsAdultOnly bool    `json:"is_adult_only"`
	ImageURL    *string `json:"image_url,omitempty"`
	DetailURL   *string `json:"detail_url,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// updateProductRequest serves both master and per-kiosk product edits.
type updateProductRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Category    *string `json:"category,omitempty"`
	Price       *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	IsAdultOnly *bool   `json:"is_adult_only,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	DetailURL   *string `json:"detail_url,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (r updateProductRequest) toInput() catalog.UpdateProductInput {
	return catalog.UpdateProductInput{
		Name:        r.Name,
		Category:    r.Category,
		Price:       r.Price,
		IsAdultOnly: r.IsAdultOnly,
		ImageURL:    r.ImageURL,
		DetailURL:   r.DetailURL,
		Description: r.Description,
		IsActive:    r.IsActive,
	}
}

func AdminCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), catalog.CreateProductInput{
			Code:        payload.Code,
			Name:        payload.Name,
			Category:    payload.Category,
			Price:       payload.Price,
			IsAdultOnly: payload.IsAdultOnly,
			ImageURL:    payload.ImageURL,
			DetailURL:   payload.DetailURL,
			Description: payload.Description,
			IsActive:    payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		list, err := svc.ListProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminUpdateProduct edits the master record only; kiosk snapshots keep
// their own copy.
func AdminUpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
