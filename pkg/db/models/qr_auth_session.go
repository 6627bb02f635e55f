package models

import (
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

// QrAuthSession is a short-lived pairing ticket. SMSCodeHash holds an argon2id
// hash of the code, never the code itself.
type QrAuthSession struct {
	ID          int64              `gorm:"primaryKey;autoIncrement"`
	KioskID     int64              `gorm:"not null;index"`
	Status      enums.QrAuthStatus `gorm:"type:varchar(20);not null;index"`
	CreatedAt   time.Time          `gorm:"not null"`
	ExpiresAt   time.Time          `gorm:"not null"`
	VerifiedAt  *time.Time
	UserID      *int64
	PhoneNumber *string    `gorm:"type:varchar(20)"`
	SMSCodeHash *string    `gorm:"column:sms_code_hash;type:varchar(255)"`
	SMSSentAt   *time.Time `gorm:"column:sms_sent_at"`
}
