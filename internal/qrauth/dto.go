package qrauth

import (
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

// CreateSessionInput is sent by a kiosk starting a pairing. A nil TTL means
// the configured default.
type CreateSessionInput struct {
	KioskID int64 `json:"kiosk_id" validate:"required,gt=0"`
	TTLSec  *int  `json:"ttl_sec,omitempty"`
}

type CreateSessionResult struct {
	SessionID int64     `json:"session_id"`
	PairCode4 string    `json:"pair_code_4"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StatusResult struct {
	Status     enums.QrAuthStatus `json:"status"`
	ExpiresAt  time.Time          `json:"expires_at"`
	VerifiedAt *time.Time         `json:"verified_at,omitempty"`
}

type CompleteInput struct {
	UserID *int64 `json:"user_id,omitempty"`
}

// PairResult is what the phone sees after typing the kiosk's 4-digit code.
type PairResult struct {
	SessionID int64     `json:"session_id"`
	KioskID   int64     `json:"kiosk_id"`
	KioskName string    `json:"kiosk_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SendCodeInput struct {
	Phone    string `json:"phone" validate:"required"`
	ClientIP string `json:"-"`
}

type SendCodeResult struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCodeInput struct {
	Code     string `json:"code" validate:"required"`
	ClientIP string `json:"-"`
}

type VerifyCodeResult struct {
	OK         bool               `json:"ok"`
	Status     enums.QrAuthStatus `json:"status"`
	VerifiedAt *time.Time         `json:"verified_at,omitempty"`
}

func statusFromModel(m *models.QrAuthSession) *StatusResult {
	return &StatusResult{
		Status:     m.Status,
		ExpiresAt:  m.ExpiresAt,
		VerifiedAt: m.VerifiedAt,
	}
}
