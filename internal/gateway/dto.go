package gateway

import (
	"time"

	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/kioskconfig"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

// HandshakeInput is the first-contact call of a device.
type HandshakeInput struct {
	KioskCode  string
	DeviceUUID *string
	AppVersion *string
	ClientIP   string
}

// HandshakeResult hands the device its credentials and a full config.
type HandshakeResult struct {
	OK            bool                     `json:"ok"`
	KioskID       int64                    `json:"kiosk_id"`
	StoreID       int64                    `json:"store_id"`
	APIKey        string                   `json:"api_key"`
	KioskPassword *string                  `json:"kiosk_password"`
	PairingCode   *string                  `json:"pairing_code"`
	ConfigVersion int64                    `json:"config_version"`
	Config        *kioskconfig.KioskConfig `json:"config"`
}

// HeartbeatInput is the periodic device status report. CurrentConfigVersion
// is absent on older firmware.
type HeartbeatInput struct {
	DeviceUUID           *string        `json:"device_uuid,omitempty"`
	AppVersion           *string        `json:"app_version,omitempty"`
	BoardConnected       bool           `json:"board_connected"`
	Errors               []string       `json:"errors"`
	Temperature          *float64       `json:"temperature,omitempty"`
	DoorOpen             *bool          `json:"door_open,omitempty"`
	CurrentConfigVersion *int64         `json:"current_config_version,omitempty"`
	Extra                map[string]any `json:"extra,omitempty"`
	ClientIP             string         `json:"client_ip,omitempty"`
}

// HeartbeatResult carries config only when the device is behind.
type HeartbeatResult struct {
	OK              bool                     `json:"ok"`
	ServerTime      time.Time                `json:"server_time"`
	ConfigVersion   int64                    `json:"config_version"`
	HasConfigUpdate bool                     `json:"has_config_update"`
	Config          *kioskconfig.KioskConfig `json:"config"`
}

// InventoryItem is one reported slot counter.
type InventoryItem struct {
	SlotID        int64
	CurrentStock  int
	LowStockAlarm *int
}

// InventoryInput is a partial or replace inventory push.
type InventoryInput struct {
	Mode  enums.InventoryMode
	Items []InventoryItem
}

// InventoryResult reports how many slots were written and skipped.
type InventoryResult struct {
	OK      bool                `json:"ok"`
	Updated int                 `json:"updated"`
	Skipped int                 `json:"skipped"`
	Mode    enums.InventoryMode `json:"mode"`
}

// InventorySnapshot lists the counters of every bound slot.
type InventorySnapshot struct {
	OK      bool                `json:"ok"`
	KioskID int64               `json:"kiosk_id"`
	Items   []catalog.BoundSlot `json:"items"`
}

// RemotePingResult delivers at most one pending remote-vend request.
type RemotePingResult struct {
	OK               bool      `json:"ok"`
	RemoteVendSlotID *int64    `json:"remote_vend_slot_id"`
	ServerTime       time.Time `json:"server_time"`
}

// RemoteVendResult acknowledges an admin remote-vend request.
type RemoteVendResult struct {
	KioskID int64 `json:"kiosk_id"`
	SlotID  int64 `json:"slot_id"`
	Queued  bool  `json:"queued"`
}
