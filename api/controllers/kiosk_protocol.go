package controllers

import (
	"net/http"
	"strings"

	"github.com/vendkiosk/kiosk-backend/api/middleware"
	"github.com/vendkiosk/kiosk-backend/api/responses"
	"github.com/vendkiosk/kiosk-backend/api/validators"
	"github.com/vendkiosk/kiosk-backend/internal/gateway"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// KioskAPIKeyHeader carries the device bearer credential issued at handshake.
const KioskAPIKeyHeader = "X-Kiosk-Api-Key"

type handshakeRequest struct {
	KioskCode  string  `json:"kiosk_code" validate:"required"`
	DeviceUUID *string `json:"device_uuid"`
	AppVersion *string `json:"app_version"`
}

type inventoryItemRequest struct {
	SlotID        int64 `json:"slot_id" validate:"required,gt=0"`
	CurrentStock  int   `json:"current_stock"`
	LowStockAlarm *int  `json:"low_stock_alarm"`
}

type inventoryRequest struct {
	Mode  string                 `json:"mode" validate:"required,oneof=partial replace"`
	Items []inventoryItemRequest `json:"items" validate:"dive"`
}

func (r inventoryRequest) toInput() gateway.InventoryInput {
	items := make([]gateway.InventoryItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, gateway.InventoryItem{
			SlotID:        item.SlotID,
			CurrentStock:  item.CurrentStock,
			LowStockAlarm: item.LowStockAlarm,
		})
	}
	return gateway.InventoryInput{Mode: enums.InventoryMode(r.Mode), Items: items}
}

type remotePingRequest struct {
	KioskCode *string `json:"kiosk_code"`
}

func apiKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(KioskAPIKeyHeader))
}

// deviceCaller resolves the kiosk id and runs the credential checks before
// the body is read, so a rejected device never gets a validation error.
func deviceCaller(w http.ResponseWriter, r *http.Request, svc gateway.Service, logg *logger.Logger) (int64, string, bool) {
	kioskID, err := validators.ParseIDParam(r, "kioskId")
	if err != nil {
		responses.WriteDeviceError(r.Context(), logg, w, err)
		return 0, "", false
	}
	key := apiKey(r)
	if err := svc.Authenticate(r.Context(), kioskID, key); err != nil {
		responses.WriteDeviceError(r.Context(), logg, w, err)
		return 0, "", false
	}
	return kioskID, key, true
}

// KioskHandshake provisions credentials on first contact and always returns
// a freshly built config.
func KioskHandshake(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}

		var payload handshakeRequest
		if err := validators.DecodeDeviceBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Handshake(r.Context(), gateway.HandshakeInput{
			KioskCode:  payload.KioskCode,
			DeviceUUID: payload.DeviceUUID,
			AppVersion: payload.AppVersion,
			ClientIP:   middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func KioskHeartbeat(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}
		kioskID, key, ok := deviceCaller(w, r, svc, logg)
		if !ok {
			return
		}

		var payload gateway.HeartbeatInput
		if err := validators.DecodeDeviceBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		payload.ClientIP = middleware.ClientIP(r)

		result, err := svc.Heartbeat(r.Context(), kioskID, key, payload)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func KioskInventoryUpdate(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}
		kioskID, key, ok := deviceCaller(w, r, svc, logg)
		if !ok {
			return
		}

		var payload inventoryRequest
		if err := validators.DecodeDeviceBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateInventory(r.Context(), kioskID, key, payload.toInput())
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

func KioskInventorySnapshot(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}
		kioskID, err := validators.ParseIDParam(r, "kioskId")
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InventorySnapshot(r.Context(), kioskID, apiKey(r))
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}

// KioskRemotePing hands the device at most one queued remote-vend slot.
func KioskRemotePing(svc gateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteDeviceError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway unavailable"))
			return
		}
		kioskID, key, ok := deviceCaller(w, r, svc, logg)
		if !ok {
			return
		}

		var payload remotePingRequest
		if err := validators.DecodeDeviceBody(r, &payload); err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RemotePing(r.Context(), kioskID, key, payload.KioskCode)
		if err != nil {
			responses.WriteDeviceError(r.Context(), logg, w, err)
			return
		}
		responses.WriteDevice(w, http.StatusOK, result)
	}
}
