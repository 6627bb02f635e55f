package models

import "time"

// Kiosk is one physical vending device. ConfigVersion is only ever changed
// through an in-database increment.
type Kiosk struct {
	ID              int64      `gorm:"primaryKey;autoIncrement"`
	StoreID         int64      `gorm:"not null;index"`
	Code            string     `gorm:"type:varchar(50);not null;uniqueIndex:uq_kiosks_code"`
	Name            string     `gorm:"type:varchar(100);not null"`
	LocationHint    *string    `gorm:"type:varchar(200)"`
	IsActive        bool       `gorm:"not null"`
	APIKey          *string    `gorm:"column:api_key;type:varchar(255)"`
	KioskPassword   *string    `gorm:"column:kiosk_password;type:varchar(50)"`
	PairCode4       *string    `gorm:"column:pair_code_4;type:varchar(4);uniqueIndex:uq_kiosks_pair_code_4"`
	ConfigVersion   int64      `gorm:"column:config_version;not null"`
	LastHeartbeatAt *time.Time `gorm:"column:last_heartbeat_at"`
	LastIP          *string    `gorm:"column:last_ip;type:varchar(64)"`
	AppVersion      *string    `gorm:"column:app_version;type:varchar(50)"`
	DeviceUUID      *string    `gorm:"column:device_uuid;type:varchar(100)"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// KioskStatusLog is the append-only heartbeat audit trail.
type KioskStatusLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	KioskID   int64     `gorm:"not null;index"`
	Status    string    `gorm:"type:varchar(20);not null"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// KioskScreenImage is one screensaver entry, displayed by ascending SortOrder.
type KioskScreenImage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	KioskID   int64     `gorm:"not null;index"`
	ImageURL  string    `gorm:"column:image_url;type:varchar(500);not null"`
	SortOrder int       `gorm:"not null"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
