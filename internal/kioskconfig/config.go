// Package kioskconfig builds the canonical snapshot of what a kiosk should
// currently display and sell.
package kioskconfig

import (
	"sort"

	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
)

// KioskConfig is the device-facing config document.
type KioskConfig struct {
	KioskID           int64        `json:"kiosk_id"`
	KioskName         string       `json:"kiosk_name"`
	Slots             []SlotConfig `json:"slots"`
	ScreensaverImages []string     `json:"screensaver_images"`
}

// SlotConfig is one slot. Product fields are null when the slot is unbound;
// ProductID is the kiosk product id, not the master product id.
type SlotConfig struct {
	SlotID      int64   `json:"slot_id"`
	BoardCode   string  `json:"board_code"`
	Row         int     `json:"row"`
	Col         int     `json:"col"`
	Label       *string `json:"label"`
	MaxCapacity int     `json:"max_capacity"`

	ProductID      *int64  `json:"product_id"`
	ProductName    *string `json:"product_name"`
	Price          *int64  `json:"price"`
	IsAdultOnly    *bool   `json:"is_adult_only"`
	ImageURL       *string `json:"image_url"`
	DetailImageURL *string `json:"detail_image_url"`
	CategoryCode   *string `json:"category_code"`
	CategoryName   *string `json:"category_name"`
}

// Build is a pure function of its inputs. Slots come out ordered by (row, col)
// and only active images are listed, by ascending sort order.
func Build(kiosk *models.Kiosk, rows []catalog.SlotRow, images []models.KioskScreenImage) KioskConfig {
	slots := make([]SlotConfig, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, slotConfig(row))
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Row != slots[j].Row {
			return slots[i].Row < slots[j].Row
		}
		if slots[i].Col != slots[j].Col {
			return slots[i].Col < slots[j].Col
		}
		return slots[i].SlotID < slots[j].SlotID
	})

	active := make([]models.KioskScreenImage, 0, len(images))
	for _, img := range images {
		if img.IsActive {
			active = append(active, img)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].SortOrder != active[j].SortOrder {
			return active[i].SortOrder < active[j].SortOrder
		}
		return active[i].ID < active[j].ID
	})
	urls := make([]string, 0, len(active))
	for _, img := range active {
		urls = append(urls, img.ImageURL)
	}

	return KioskConfig{
		KioskID:           kiosk.ID,
		KioskName:         kiosk.Name,
		Slots:             slots,
		ScreensaverImages: urls,
	}
}

func slotConfig(row catalog.SlotRow) SlotConfig {
	cfg := SlotConfig{
		SlotID:      row.SlotID,
		BoardCode:   row.BoardCode,
		Row:         row.Row,
		Col:         row.Col,
		Label:       row.Label,
		MaxCapacity: row.MaxCapacity,
	}
	if !row.Bound() {
		return cfg
	}
	cfg.ProductID = row.KioskProductID
	cfg.ProductName = row.ProductName
	cfg.Price = row.Price
	cfg.IsAdultOnly = row.IsAdultOnly
	cfg.ImageURL = row.ImageURL
	cfg.DetailImageURL = row.DetailURL
	cfg.CategoryCode = row.Category
	cfg.CategoryName = row.Category
	return cfg
}
