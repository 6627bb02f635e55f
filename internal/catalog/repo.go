package catalog

import (
	"context"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists products, kiosk product snapshots, slot bindings and
// screensaver images.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// SlotRow is one slot left-joined to its binding and kiosk product. Binding
// and product columns are nil for an unbound slot.
type SlotRow struct {
	SlotID      int64   `gorm:"column:slot_id"`
	KioskID     int64   `gorm:"column:kiosk_id"`
	Row         int     `gorm:"column:row_num"`
	Col         int     `gorm:"column:col_num"`
	BoardCode   string  `gorm:"column:board_code"`
	Label       *string `gorm:"column:label"`
	MaxCapacity int     `gorm:"column:max_capacity"`
	IsEnabled   bool    `gorm:"column:is_enabled"`

	BindingID     *int64 `gorm:"column:binding_id"`
	CurrentStock  *int   `gorm:"column:current_stock"`
	LowStockAlarm *int   `gorm:"column:low_stock_alarm"`
	BindingActive *bool  `gorm:"column:binding_active"`

	KioskProductID *int64  `gorm:"column:kiosk_product_id"`
	BaseProductID  *int64  `gorm:"column:base_product_id"`
	ProductName    *string `gorm:"column:product_name"`
	Price          *int64  `gorm:"column:price"`
	IsAdultOnly    *bool   `gorm:"column:is_adult_only"`
	ImageURL       *string `gorm:"column:image_url"`
	DetailURL      *string `gorm:"column:detail_url"`
	Category       *string `gorm:"column:category"`
}

// Bound reports whether the slot has both a binding and a kiosk product.
func (s SlotRow) Bound() bool {
	return s.BindingID != nil && s.KioskProductID != nil
}

const slotRowsQuery = `
SELECT s.id AS slot_id,
       s.kiosk_id,
       s.row_num,
       s.col_num,
       s.board_code,
       s.label,
       s.max_capacity,
       s.is_enabled,
       b.id AS binding_id,
       b.current_stock,
       b.low_stock_alarm,
       b.is_active AS binding_active,
       kp.id AS kiosk_product_id,
       kp.base_product_id,
       kp.name AS product_name,
       kp.price,
       kp.is_adult_only,
       kp.image_url,
       kp.detail_url,
       kp.category
FROM vending_slots s
LEFT JOIN vending_slot_products b ON b.slot_id = s.id
LEFT JOIN kiosk_products kp ON kp.id = b.kiosk_product_id
WHERE s.kiosk_id = ?
`

// ListSlotRows returns every slot of the kiosk ordered by (row, col).
func (r *Repository) ListSlotRows(ctx context.Context, kioskID int64) ([]SlotRow, error) {
	var rows []SlotRow
	err := r.db.WithContext(ctx).
		Raw(slotRowsQuery+"ORDER BY s.row_num ASC, s.col_num ASC", kioskID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindSlotRow loads a single slot row scoped to its kiosk.
func (r *Repository) FindSlotRow(ctx context.Context, kioskID, slotID int64) (*SlotRow, error) {
	var rows []SlotRow
	err := r.db.WithContext(ctx).
		Raw(slotRowsQuery+"AND s.id = ?", kioskID, slotID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// FindSlot loads a slot only if it belongs to kioskID.
func (r *Repository) FindSlot(ctx context.Context, kioskID, slotID int64) (*models.VendingSlot, error) {
	var slot models.VendingSlot
	if err := r.db.WithContext(ctx).Where("id = ? AND kiosk_id = ?", slotID, kioskID).First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

// SetSlotCapacity overwrites max_capacity.
func (r *Repository) SetSlotCapacity(ctx context.Context, slotID int64, capacity int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VendingSlot{}).
		Where("id = ?", slotID).
		Updates(map[string]any{"max_capacity": capacity, "updated_at": now}).Error
}

// CreateProduct inserts a master catalog product.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindProduct loads a master product by id.
func (r *Repository) FindProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns the master catalog ordered by id.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateProductFields applies a column map to one master product.
func (r *Repository) UpdateProductFields(ctx context.Context, id int64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertKioskProduct inserts the snapshot unless (kiosk_id, base_product_id)
// already exists, then returns the stored row. An existing snapshot keeps its
// per-kiosk edits.
func (r *Repository) UpsertKioskProduct(ctx context.Context, kp *models.KioskProduct) (*models.KioskProduct, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kiosk_id"}, {Name: "base_product_id"}},
			DoNothing: true,
		}).
		Create(kp).Error
	if err != nil {
		return nil, err
	}
	var stored models.KioskProduct
	err = r.db.WithContext(ctx).
		Where("kiosk_id = ? AND base_product_id = ?", kp.KioskID, kp.BaseProductID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindKioskProduct loads a snapshot only if it belongs to kioskID.
func (r *Repository) FindKioskProduct(ctx context.Context, kioskID, id int64) (*models.KioskProduct, error) {
	var kp models.KioskProduct
	if err := r.db.WithContext(ctx).Where("id = ? AND kiosk_id = ?", id, kioskID).First(&kp).Error; err != nil {
		return nil, err
	}
	return &kp, nil
}

// ListKioskProducts returns the kiosk's snapshots ordered by id.
func (r *Repository) ListKioskProducts(ctx context.Context, kioskID int64) ([]models.KioskProduct, error) {
	var rows []models.KioskProduct
	if err := r.db.WithContext(ctx).Where("kiosk_id = ?", kioskID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateKioskProductFields applies a column map to one snapshot.
func (r *Repository) UpdateKioskProductFields(ctx context.Context, id int64, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.KioskProduct{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertBinding writes the slot binding, replacing any existing one for the
// same slot.
func (r *Repository) UpsertBinding(ctx context.Context, binding *models.VendingSlotProduct) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kiosk_product_id", "current_stock", "low_stock_alarm", "is_active", "updated_at",
			}),
		}).
		Create(binding).Error
}

// FindBinding loads the binding of a slot.
func (r *Repository) FindBinding(ctx context.Context, slotID int64) (*models.VendingSlotProduct, error) {
	var binding models.VendingSlotProduct
	if err := r.db.WithContext(ctx).Where("slot_id = ?", slotID).First(&binding).Error; err != nil {
		return nil, err
	}
	return &binding, nil
}

// LockBinding loads the binding of a slot with a row lock held until tx ends.
func (r *Repository) LockBinding(ctx context.Context, slotID int64) (*models.VendingSlotProduct, error) {
	var binding models.VendingSlotProduct
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("slot_id = ?", slotID).
		First(&binding).Error
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// DeleteBinding removes the binding of a slot and reports whether one existed.
func (r *Repository) DeleteBinding(ctx context.Context, slotID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("slot_id = ?", slotID).Delete(&models.VendingSlotProduct{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// BoundSlot is the inventory view of one bound slot.
type BoundSlot struct {
	SlotID        int64 `gorm:"column:slot_id" json:"slot_id"`
	CurrentStock  int   `gorm:"column:current_stock" json:"current_stock"`
	LowStockAlarm int   `gorm:"column:low_stock_alarm" json:"low_stock_alarm"`
}

// ListBoundSlots returns the counters of every bound slot of the kiosk,
// ordered by slot id.
func (r *Repository) ListBoundSlots(ctx context.Context, kioskID int64) ([]BoundSlot, error) {
	var rows []BoundSlot
	err := r.db.WithContext(ctx).
		Table("vending_slot_products AS b").
		Select("b.slot_id, b.current_stock, b.low_stock_alarm").
		Joins("JOIN vending_slots s ON s.id = b.slot_id").
		Joins("JOIN kiosk_products kp ON kp.id = b.kiosk_product_id").
		Where("s.kiosk_id = ?", kioskID).
		Order("b.slot_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSlotIDs returns the ids of every slot the kiosk owns.
func (r *Repository) ListSlotIDs(ctx context.Context, kioskID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.VendingSlot{}).
		Where("kiosk_id = ?", kioskID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateStock sets the counters of a bound slot. A nil alarm is left as is.
func (r *Repository) UpdateStock(ctx context.Context, slotID int64, stock int, alarm *int, now time.Time) error {
	fields := map[string]any{"current_stock": stock, "updated_at": now}
	if alarm != nil {
		fields["low_stock_alarm"] = *alarm
	}
	return r.db.WithContext(ctx).
		Model(&models.VendingSlotProduct{}).
		Where("slot_id = ?", slotID).
		Updates(fields).Error
}

// ListScreenImages returns the kiosk's screensaver images by sort order.
func (r *Repository) ListScreenImages(ctx context.Context, kioskID int64, activeOnly bool) ([]models.KioskScreenImage, error) {
	q := r.db.WithContext(ctx).Where("kiosk_id = ?", kioskID).Order("sort_order ASC, id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var images []models.KioskScreenImage
	if err := q.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// NextSortOrder returns max(sort_order)+1 for the kiosk, or 1 when empty.
func (r *Repository) NextSortOrder(ctx context.Context, kioskID int64) (int, error) {
	var next int
	err := r.db.WithContext(ctx).
		Model(&models.KioskScreenImage{}).
		Where("kiosk_id = ?", kioskID).
		Select("COALESCE(MAX(sort_order), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// CreateScreenImage inserts a screensaver image.
func (r *Repository) CreateScreenImage(ctx context.Context, image *models.KioskScreenImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

// DeleteScreenImage removes an image scoped to its kiosk and reports whether
// one was deleted.
func (r *Repository) DeleteScreenImage(ctx context.Context, kioskID, imageID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND kiosk_id = ?", imageID, kioskID).
		Delete(&models.KioskScreenImage{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
