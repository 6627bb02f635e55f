package controllers

import (
	"net/http"

	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/gateway"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

type assignSlotRequest struct {
	ProductID     int64 `json:"product_id" validate:"required,gt=0"`
	MaxCapacity   int   `json:"max_capacity" validate:"gte=0"`
	CurrentStock  int   `json:"current_stock" validate:"gte=0"`
	LowStockAlarm int   `json:"low_stock_alarm" validate:"gte=0"`
	IsActive      *bool `json:"is_active,omitempty"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type remoteVendRequest struct {
	SlotID int64 `json:"slot_id" validate:"required,gt=0"`
}

func kioskSlotIDs(r *http.Request) (int64, int64, error) {
	kioskID, err := validators.ParseIDParam(r, "kioskId")
	if err != nil {
		return 0, 0, err
	}
	slotID, err := validators.ParseIDParam(r, "slotId")
	if err != nil {
		return 0, 0, err
	}
	return kioskID, slotID, nil
}

func AdminListSlots(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
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

		slots, err := svc.ListSlots(r.Context(), kioskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slots)
	}
}

// AdminAssignSlot binds a master product to a slot, snapshotting it for the
// kiosk on first use.
func AdminAssignSlot(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, slotID, err := kioskSlotIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignSlotRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.AssignSlot(r.Context(), kioskID, slotID, catalog.AssignSlotInput{
			ProductID:     payload.ProductID,
			MaxCapacity:   payload.MaxCapacity,
			CurrentStock:  payload.CurrentStock,
			LowStockAlarm: payload.LowStockAlarm,
			IsActive:      payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slot)
	}
}

func AdminClearSlot(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, slotID, err := kioskSlotIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.ClearSlot(r.Context(), kioskID, slotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slot)
	}
}

func AdminAdjustStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		kioskID, slotID, err := kioskSlotIDs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		slot, err := svc.AdjustStock(r.Context(), kioskID, slotID, payload.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, slot)
	}
}

// AdminRemoteVend queues a dispense for the kiosk's next remote-ping.
func AdminRemoteVend(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload remoteVendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TriggerRemoteVend(r.Context(), kioskID, payload.SlotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}
