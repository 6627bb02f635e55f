package qrauth

import (
	"context"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists pairing sessions. Every transition is a conditional
// UPDATE guarded by status = PENDING, so a session leaves PENDING once.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, session *models.QrAuthSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.QrAuthSession, error) {
	var session models.QrAuthSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Transition moves a PENDING session to status with the extra fields applied.
// It reports false when the session was no longer PENDING.
func (r *Repository) Transition(ctx context.Context, id int64, status enums.QrAuthStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": status}
	for k, v := range fields {
		updates[k] = v
	}
	return r.updatePending(ctx, id, updates)
}

// StoreSMSCode records a freshly sent code and re-arms the expiry.
func (r *Repository) StoreSMSCode(ctx context.Context, id int64, phone, codeHash string, sentAt, expiresAt time.Time) (bool, error) {
	return r.updatePending(ctx, id, map[string]any{
		"phone_number":  phone,
		"sms_code_hash": codeHash,
		"sms_sent_at":   sentAt,
		"expires_at":    expiresAt,
	})
}

func (r *Repository) updatePending(ctx context.Context, id int64, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.QrAuthSession{}).
		Where("id = ? AND status = ?", id, enums.QrAuthStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireStaleByPairCode flips every overdue PENDING session of the kiosks
// holding pairCode to EXPIRED.
func (r *Repository) ExpireStaleByPairCode(ctx context.Context, pairCode string, now time.Time) (int64, error) {
	kioskIDs := r.db.Model(&models.Kiosk{}).Select("id").Where("pair_code_4 = ?", pairCode)
	res := r.db.WithContext(ctx).
		Model(&models.QrAuthSession{}).
		Where("status = ? AND expires_at < ? AND kiosk_id IN (?)", enums.QrAuthStatusPending, now, kioskIDs).
		Update("status", enums.QrAuthStatusExpired)
	return res.RowsAffected, res.Error
}

// LatestPendingByPairCode returns the newest PENDING session for the kiosk
// holding pairCode.
func (r *Repository) LatestPendingByPairCode(ctx context.Context, pairCode string) (*models.QrAuthSession, error) {
	var session models.QrAuthSession
	err := r.db.WithContext(ctx).
		Table("qr_auth_sessions AS s").
		Select("s.*").
		Joins("JOIN kiosks k ON k.id = s.kiosk_id").
		Where("k.pair_code_4 = ? AND s.status = ?", pairCode, enums.QrAuthStatusPending).
		Order("s.created_at DESC, s.id DESC").
		Limit(1).
		Take(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}
