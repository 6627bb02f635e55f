package models

import "time"

// Store owns a set of kiosks.
type Store struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	Code            string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_stores_code"`
	Name            string    `gorm:"type:varchar(100);not null"`
	Status          string    `gorm:"type:varchar(20);not null"`
	CSPhone         *string   `gorm:"column:cs_phone;type:varchar(20)"`
	InstallLocation *string   `gorm:"type:text"`
	Address         *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}
