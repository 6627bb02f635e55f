package catalog

import (
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
)

// ProductDTO is the admin view of a master product.
type ProductDTO struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Category    *string   `json:"category"`
	Price       int64     `json:"price"`
	IsAdultOnly bool      `json:"is_adult_only"`
	ImageURL    *string   `json:"image_url"`
	DetailURL   *string   `json:"detail_url"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProductInput carries the master product form.
type CreateProductInput struct {
	Code        string
	Name        string
	Category    *string
	Price       int64
	IsAdultOnly bool
	ImageURL    *string
	DetailURL   *string
	Description *string
	IsActive    *bool
}

// UpdateProductInput is shared by master and per-kiosk product edits; nil
// fields are left untouched.
type UpdateProductInput struct {
	Name        *string
	Category    *string
	Price       *int64
	IsAdultOnly *bool
	ImageURL    *string
	DetailURL   *string
	Description *string
	IsActive    *bool
}

func (in UpdateProductInput) fields() map[string]any {
	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.Price != nil {
		fields["price"] = *in.Price
	}
	if in.IsAdultOnly != nil {
		fields["is_adult_only"] = *in.IsAdultOnly
	}
	if in.ImageURL != nil {
		fields["image_url"] = *in.ImageURL
	}
	if in.DetailURL != nil {
		fields["detail_url"] = *in.DetailURL
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	return fields
}

// KioskProductDTO is a per-kiosk product snapshot.
type KioskProductDTO struct {
	ID            int64     `json:"id"`
	KioskID       int64     `json:"kiosk_id"`
	BaseProductID int64     `json:"base_product_id"`
	Name          string    `json:"name"`
	Category      *string   `json:"category"`
	Price         int64     `json:"price"`
	IsAdultOnly   bool      `json:"is_adult_only"`
	ImageURL      *string   `json:"image_url"`
	DetailURL     *string   `json:"detail_url"`
	Description   *string   `json:"description"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SlotDTO is the admin view of a slot and its binding.
type SlotDTO struct {
	ID            int64            `json:"id"`
	Row           int              `json:"row"`
	Col           int              `json:"col"`
	BoardCode     string           `json:"board_code"`
	Label         *string          `json:"label"`
	MaxCapacity   int              `json:"max_capacity"`
	IsEnabled     bool             `json:"is_enabled"`
	CurrentStock  *int             `json:"current_stock"`
	LowStockAlarm *int             `json:"low_stock_alarm"`
	Product       *SlotProductView `json:"product"`
}

// SlotProductView is the bound product as shown on the slot grid.
type SlotProductView struct {
	KioskProductID int64   `json:"kiosk_product_id"`
	BaseProductID  int64   `json:"base_product_id"`
	Name           string  `json:"name"`
	Price          int64   `json:"price"`
	ImageURL       *string `json:"image_url"`
}

// AssignSlotInput binds a master product to a slot.
type AssignSlotInput struct {
	ProductID     int64
	MaxCapacity   int
	CurrentStock  int
	LowStockAlarm int
	IsActive      *bool
}

// ScreenImageDTO is one screensaver entry.
type ScreenImageDTO struct {
	ID        int64     `json:"id"`
	ImageURL  string    `json:"image_url"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func productFromModel(m *models.Product) ProductDTO {
	return ProductDTO{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		Category:    m.Category,
		Price:       m.Price,
		IsAdultOnly: m.IsAdultOnly,
		ImageURL:    m.ImageURL,
		DetailURL:   m.DetailURL,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func kioskProductFromModel(m *models.KioskProduct) KioskProductDTO {
	return KioskProductDTO{
		ID:            m.ID,
		KioskID:       m.KioskID,
		BaseProductID: m.BaseProductID,
		Name:          m.Name,
		Category:      m.Category,
		Price:         m.Price,
		IsAdultOnly:   m.IsAdultOnly,
		ImageURL:      m.ImageURL,
		DetailURL:     m.DetailURL,
		Description:   m.Description,
		IsActive:      m.IsActive,
		UpdatedAt:     m.UpdatedAt,
	}
}

func slotFromRow(r SlotRow) SlotDTO {
	dto := SlotDTO{
		ID:            r.SlotID,
		Row:           r.Row,
		Col:           r.Col,
		BoardCode:     r.BoardCode,
		Label:         r.Label,
		MaxCapacity:   r.MaxCapacity,
		IsEnabled:     r.IsEnabled,
		CurrentStock:  r.CurrentStock,
		LowStockAlarm: r.LowStockAlarm,
	}
	if r.Bound() {
		view := &SlotProductView{
			KioskProductID: *r.KioskProductID,
			ImageURL:       r.ImageURL,
		}
		if r.BaseProductID != nil {
			view.BaseProductID = *r.BaseProductID
		}
		if r.ProductName != nil {
			view.Name = *r.ProductName
		}
		if r.Price != nil {
			view.Price = *r.Price
		}
		dto.Product = view
	}
	return dto
}

func screenImageFromModel(m *models.KioskScreenImage) ScreenImageDTO {
	return ScreenImageDTO{
		ID:        m.ID,
		ImageURL:  m.ImageURL,
		SortOrder: m.SortOrder,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}
