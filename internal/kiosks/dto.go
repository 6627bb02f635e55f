package kiosks

import (
	"encoding/json"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
)

// KioskDTO is the admin view of a kiosk, credentials included.
type KioskDTO struct {
	ID              int64      `json:"id"`
	StoreID         int64      `json:"store_id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	LocationHint    *string    `json:"location_hint,omitempty"`
	IsActive        bool       `json:"is_active"`
	APIKey          *string    `json:"api_key"`
	KioskPassword   *string    `json:"kiosk_password"`
	PairCode4       *string    `json:"pair_code_4"`
	ConfigVersion   int64      `json:"config_version"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at"`
	LastIP          *string    `json:"last_ip"`
	AppVersion      *string    `json:"app_version"`
	DeviceUUID      *string    `json:"device_uuid"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateKioskInput carries the admin create-kiosk form.
type CreateKioskInput struct {
	StoreID        int64
	Code           string
	Name           string
	LocationHint   *string
	KioskPassword  *string
	GenerateAPIKey bool
}

// UpdateKioskInput holds optional admin edits; nil fields are left untouched.
type UpdateKioskInput struct {
	Name          *string
	LocationHint  *string
	IsActive      *bool
	KioskPassword *string
}

// FromModel maps the persisted kiosk into a DTO.
func FromModel(m *models.Kiosk) *KioskDTO {
	if m == nil {
		return nil
	}
	return &KioskDTO{
		ID:              m.ID,
		StoreID:         m.StoreID,
		Code:            m.Code,
		Name:            m.Name,
		LocationHint:    m.LocationHint,
		IsActive:        m.IsActive,
		APIKey:          m.APIKey,
		KioskPassword:   m.KioskPassword,
		PairCode4:       m.PairCode4,
		ConfigVersion:   m.ConfigVersion,
		LastHeartbeatAt: m.LastHeartbeatAt,
		LastIP:          m.LastIP,
		AppVersion:      m.AppVersion,
		DeviceUUID:      m.DeviceUUID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// StatusLogDTO is one device audit entry. Payload is the heartbeat body as
// the device sent it.
type StatusLogDTO struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// StatusLogPage is one newest-first page; NextCursor is nil on the last page.
type StatusLogPage struct {
	Items      []StatusLogDTO `json:"items"`
	NextCursor *string        `json:"next_cursor"`
}

func statusLogFromModel(m models.KioskStatusLog) StatusLogDTO {
	payload := json.RawMessage(m.Payload)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(m.Payload)
	}
	return StatusLogDTO{ID: m.ID, Status: m.Status, Payload: payload, CreatedAt: m.CreatedAt}
}
