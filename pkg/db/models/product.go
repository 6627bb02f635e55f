package models

import "time"

// Product is the master catalog entry.
type Product struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Code        string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_products_code"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Category    *string   `gorm:"type:varchar(100)"`
	Price       int64     `gorm:"not null"`
	IsAdultOnly bool      `gorm:"not null"`
	ImageURL    *string   `gorm:"column:image_url;type:varchar(500)"`
	DetailURL   *string   `gorm:"column:detail_url;type:varchar(500)"`
	Description *string   `gorm:"type:text"`
	IsActive    bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// KioskProduct is a per-kiosk copy of a master product. Edits here never
// reach the master row or other kiosks.
type KioskProduct struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	KioskID       int64     `gorm:"not null;uniqueIndex:uq_kiosk_products_kiosk_base,priority:1"`
	BaseProductID int64     `gorm:"not null;uniqueIndex:uq_kiosk_products_kiosk_base,priority:2"`
	Name          string    `gorm:"type:varchar(200);not null"`
	Category      *string   `gorm:"type:varchar(100)"`
	Price         int64     `gorm:"not null"`
	IsAdultOnly   bool      `gorm:"not null"`
	ImageURL      *string   `gorm:"column:image_url;type:varchar(500)"`
	DetailURL     *string   `gorm:"column:detail_url;type:varchar(500)"`
	Description   *string   `gorm:"type:text"`
	IsActive      bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}
