package stores

import (
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
)

// StoreDTO exposes store data in admin responses.
type StoreDTO struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	CSPhone         *string   `json:"cs_phone,omitempty"`
	InstallLocation *string   `json:"install_location,omitempty"`
	Address         *string   `json:"address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateStoreInput holds creation-time data for a new store.
type CreateStoreInput struct {
	Code            string
	Name            string
	CSPhone         *string
	InstallLocation *string
	Address         *string
}

// FromModel maps the persisted store into a DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:              m.ID,
		Code:            m.Code,
		Name:            m.Name,
		Status:          m.Status,
		CSPhone:         m.CSPhone,
		InstallLocation: m.InstallLocation,
		Address:         m.Address,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
