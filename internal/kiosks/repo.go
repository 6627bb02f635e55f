package kiosks

import (
	"context"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles kiosk registry persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to kiosk operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DeviceContact is what a device reports on handshake and heartbeat.
type DeviceContact struct {
	DeviceUUID *string
	AppVersion *string
	IP         *string
	At         time.Time
}

// FindByID loads a kiosk by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Kiosk, error) {
	return r.findByIDWithTx(r.db.WithContext(ctx), id)
}

// FindByCode loads a kiosk by its unique human code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Kiosk, error) {
	var kiosk models.Kiosk
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&kiosk).Error; err != nil {
		return nil, err
	}
	return &kiosk, nil
}

// List returns kiosks ordered by id, optionally scoped to one store.
func (r *Repository) List(ctx context.Context, storeID *int64) ([]models.Kiosk, error) {
	q := r.db.WithContext(ctx).Order("id ASC")
	if storeID != nil {
		q = q.Where("store_id = ?", *storeID)
	}
	var kiosks []models.Kiosk
	if err := q.Find(&kiosks).Error; err != nil {
		return nil, err
	}
	return kiosks, nil
}

// ListStale returns active kiosks whose last heartbeat is missing or older than cutoff.
func (r *Repository) ListStale(ctx context.Context, cutoff time.Time) ([]models.Kiosk, error) {
	var kiosks []models.Kiosk
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("last_heartbeat_at IS NULL OR last_heartbeat_at < ?", cutoff).
		Order("id ASC").
		Find(&kiosks).Error
	if err != nil {
		return nil, err
	}
	return kiosks, nil
}

// LockByIDWithTx loads a kiosk with a row lock held until tx ends.
func (r *Repository) LockByIDWithTx(tx *gorm.DB, id int64) (*models.Kiosk, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	return r.findByIDWithTx(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *Repository) findByIDWithTx(tx *gorm.DB, id int64) (*models.Kiosk, error) {
	var kiosk models.Kiosk
	if err := tx.Where("id = ?", id).First(&kiosk).Error; err != nil {
		return nil, err
	}
	return &kiosk, nil
}

// StoreExistsWithTx reports whether the owning store row exists.
func (r *Repository) StoreExistsWithTx(tx *gorm.DB, storeID int64) (bool, error) {
	var count int64
	if err := tx.Model(&models.Store{}).Where("id = ?", storeID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateWithTx inserts the kiosk row.
func (r *Repository) CreateWithTx(tx *gorm.DB, kiosk *models.Kiosk) error {
	return tx.Create(kiosk).Error
}

// UpdateFieldsWithTx applies a column map to one kiosk.
func (r *Repository) UpdateFieldsWithTx(tx *gorm.DB, id int64, fields map[string]any) error {
	res := tx.Model(&models.Kiosk{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BumpConfigVersionWithTx increments config_version in the database and
// returns the new value. It must run in the same tx as the data change.
func (r *Repository) BumpConfigVersionWithTx(tx *gorm.DB, id int64, now time.Time) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	if err := r.UpdateFieldsWithTx(tx, id, map[string]any{
		"config_version": gorm.Expr("config_version + 1"),
		"updated_at":     now,
	}); err != nil {
		return 0, err
	}
	var version int64
	if err := tx.Model(&models.Kiosk{}).Where("id = ?", id).Pluck("config_version", &version).Error; err != nil {
		return 0, err
	}
	return version, nil
}

// RecordContact stamps device identity, address and last_heartbeat_at.
func (r *Repository) RecordContact(ctx context.Context, id int64, contact DeviceContact) error {
	fields := map[string]any{"last_heartbeat_at": contact.At}
	if contact.DeviceUUID != nil {
		fields["device_uuid"] = *contact.DeviceUUID
	}
	if contact.AppVersion != nil {
		fields["app_version"] = *contact.AppVersion
	}
	if contact.IP != nil {
		fields["last_ip"] = *contact.IP
	}
	return r.UpdateFieldsWithTx(r.db.WithContext(ctx), id, fields)
}

// AssignAPIKeyIfUnset stores key only when the kiosk has none yet. It reports
// whether this call won; concurrent first handshakes converge on one key.
func (r *Repository) AssignAPIKeyIfUnset(ctx context.Context, id int64, key string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Kiosk{}).
		Where("id = ? AND api_key IS NULL", id).
		Update("api_key", key)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AppendStatusLog inserts one audit row. Rows are never updated.
func (r *Repository) AppendStatusLog(ctx context.Context, entry *models.KioskStatusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListStatusLogs returns up to limit audit rows of one kiosk, newest first,
// strictly older than after when it is set.
func (r *Repository) ListStatusLogs(ctx context.Context, kioskID int64, after *pagination.Cursor, limit int) ([]models.KioskStatusLog, error) {
	q := r.db.WithContext(ctx).Where("kiosk_id = ?", kioskID)
	if after != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var logs []models.KioskStatusLog
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// PairCodeTakenWithTx reports whether any kiosk already holds code.
func (r *Repository) PairCodeTakenWithTx(tx *gorm.DB, code string) (bool, error) {
	var count int64
	if err := tx.Model(&models.Kiosk{}).Where("pair_code_4 = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsedPairCodesWithTx lists every assigned pair code.
func (r *Repository) UsedPairCodesWithTx(tx *gorm.DB) ([]string, error) {
	var codes []string
	if err := tx.Model(&models.Kiosk{}).Where("pair_code_4 IS NOT NULL").Pluck("pair_code_4", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
