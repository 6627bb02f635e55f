package models

import "time"

// VendingSlot is a fixed grid position of a kiosk. Rows and columns are 1-based.
type VendingSlot struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	KioskID     int64     `gorm:"not null;uniqueIndex:uq_vending_slots_position,priority:1"`
	Row         int       `gorm:"column:row_num;not null;uniqueIndex:uq_vending_slots_position,priority:2"`
	Col         int       `gorm:"column:col_num;not null;uniqueIndex:uq_vending_slots_position,priority:3"`
	BoardCode   string    `gorm:"type:varchar(10);not null"`
	Label       *string   `gorm:"type:varchar(50)"`
	MaxCapacity int       `gorm:"not null"`
	IsEnabled   bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// VendingSlotProduct binds a slot to a kiosk product and carries its stock.
type VendingSlotProduct struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	SlotID         int64     `gorm:"not null;uniqueIndex:uq_vending_slot_products_slot"`
	KioskProductID int64     `gorm:"not null;index"`
	CurrentStock   int       `gorm:"not null"`
	LowStockAlarm  int       `gorm:"not null"`
	IsActive       bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}
