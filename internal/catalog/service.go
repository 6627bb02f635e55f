package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"gorm.io/gorm"
)

// Config-version bump reasons, used as the metric label and log field.
const (
	ReasonSlotAssign         = "slot_assign"
	ReasonSlotClear          = "slot_clear"
	ReasonKioskProductUpdate = "kiosk_product_update"
	ReasonScreensaverAdd     = "screensaver_add"
	ReasonScreensaverDelete  = "screensaver_delete"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// KioskVersioner is the slice of the kiosk registry the catalog needs to keep
// config_version in step with its writes.
type KioskVersioner interface {
	FindByID(ctx context.Context, id int64) (*models.Kiosk, error)
	LockByIDWithTx(tx *gorm.DB, id int64) (*models.Kiosk, error)
	BumpConfigVersionWithTx(tx *gorm.DB, id int64, now time.Time) (int64, error)
}

// ImageUploader stores a screensaver file and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, prefix, filename, contentType string, body io.Reader) (string, error)
}

// Service is the admin catalog surface.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (*ProductDTO, error)

	ListSlots(ctx context.Context, kioskID int64) ([]SlotDTO, error)
	AssignSlot(ctx context.Context, kioskID, slotID int64, input AssignSlotInput) (*SlotDTO, error)
	ClearSlot(ctx context.Context, kioskID, slotID int64) (*SlotDTO, error)
	AdjustStock(ctx context.Context, kioskID, slotID int64, delta int) (*SlotDTO, error)

	ListKioskProducts(ctx context.Context, kioskID int64) ([]KioskProductDTO, error)
	UpdateKioskProduct(ctx context.Context, kioskID, kioskProductID int64, input UpdateProductInput) (*KioskProductDTO, error)

	ListScreensaver(ctx context.Context, kioskID int64) ([]ScreenImageDTO, error)
	UploadScreensaver(ctx context.Context, kioskID int64, filename, contentType string, body io.Reader) (*ScreenImageDTO, error)
	AddScreensaverURL(ctx context.Context, kioskID int64, imageURL string) (*ScreenImageDTO, error)
	DeleteScreensaver(ctx context.Context, kioskID, imageID int64) error
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Tx       txRunner
	Repo     *Repository
	Kiosks   KioskVersioner
	Uploader ImageUploader
	Logger   *logger.Logger
	Metrics  *metrics.KioskMetrics
	Now      func() time.Time
}

type service struct {
	tx       txRunner
	repo     *Repository
	kiosks   KioskVersioner
	uploader ImageUploader
	logg     *logger.Logger
	metrics  *metrics.KioskMetrics
	now      func() time.Time
}

// NewService builds the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Kiosks == nil {
		return nil, fmt.Errorf("kiosk versioner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		kiosks:   params.Kiosks,
		uploader: params.Uploader,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// mutateConfig is the only write path for config-affecting changes: it locks
// the kiosk row, applies fn and increments config_version in one transaction.
func (s *service) mutateConfig(ctx context.Context, kioskID int64, reason string, fn func(ctx context.Context, repo *Repository, now time.Time) error) error {
	now := s.now().UTC()
	var version int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.kiosks.LockByIDWithTx(tx, kioskID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
			}
			return err
		}
		if err := fn(ctx, s.repo.WithTx(tx), now); err != nil {
			return err
		}
		var err error
		version, err = s.kiosks.BumpConfigVersionWithTx(tx, kioskID, now)
		return err
	})
	if err != nil {
		return mapStorageError(err, "catalog mutation")
	}

	s.metrics.IncConfigBump(reason)
	s.logg.Info(s.logg.WithFields(s.logg.WithKioskID(ctx, kioskID), map[string]any{
		"config_version": version,
		"reason":         reason,
	}), "kiosk.config_version.bumped")
	return nil
}

func (s *service) requireKiosk(ctx context.Context, kioskID int64) (*models.Kiosk, error) {
	kiosk, err := s.kiosks.FindByID(ctx, kioskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk")
	}
	return kiosk, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	product := &models.Product{
		Code:        code,
		Name:        name,
		Category:    input.Category,
		Price:       input.Price,
		IsAdultOnly: input.IsAdultOnly,
		ImageURL:    input.ImageURL,
		DetailURL:   input.DetailURL,
		Description: input.Description,
		IsActive:    active,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "uq_products_code", "products.code") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	dto := productFromModel(product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	rows, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, productFromModel(&rows[i]))
	}
	return out, nil
}

// UpdateProduct edits the master row only. Existing kiosk snapshots keep
// their own copy, so no kiosk config changes.
func (s *service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (*ProductDTO, error) {
	if input.Price != nil && *input.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if fields := input.fields(); len(fields) > 0 {
		fields["updated_at"] = s.now().UTC()
		if err := s.repo.UpdateProductFields(ctx, id, fields); err != nil {
			return nil, mapStorageError(err, "update product")
		}
	}
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, mapStorageError(err, "load product")
	}
	dto := productFromModel(product)
	return &dto, nil
}

func (s *service) ListSlots(ctx context.Context, kioskID int64) ([]SlotDTO, error) {
	if _, err := s.requireKiosk(ctx, kioskID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSlotRows(ctx, kioskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slots")
	}
	out := make([]SlotDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, slotFromRow(row))
	}
	return out, nil
}

// AssignSlot snapshots the master product for this kiosk (reusing an existing
// snapshot) and binds it to the slot.
func (s *service) AssignSlot(ctx context.Context, kioskID, slotID int64, input AssignSlotInput) (*SlotDTO, error) {
	if input.MaxCapacity < 0 || input.CurrentStock < 0 || input.LowStockAlarm < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity and stock values must be non-negative")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	err := s.mutateConfig(ctx, kioskID, ReasonSlotAssign, func(ctx context.Context, repo *Repository, now time.Time) error {
		if _, err := repo.FindSlot(ctx, kioskID, slotID); err != nil {
			return notFound(err, "slot not found")
		}
		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			return notFound(err, "product not found")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is inactive").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		kp, err := repo.UpsertKioskProduct(ctx, snapshotOf(kioskID, product, now))
		if err != nil {
			return err
		}
		if err := repo.UpsertBinding(ctx, &models.VendingSlotProduct{
			SlotID:         slotID,
			KioskProductID: kp.ID,
			CurrentStock:   input.CurrentStock,
			LowStockAlarm:  input.LowStockAlarm,
			IsActive:       active,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			return err
		}
		return repo.SetSlotCapacity(ctx, slotID, input.MaxCapacity, now)
	})
	if err != nil {
		return nil, err
	}
	return s.slot(ctx, kioskID, slotID)
}

func snapshotOf(kioskID int64, product *models.Product, now time.Time) *models.KioskProduct {
	return &models.KioskProduct{
		KioskID:       kioskID,
		BaseProductID: product.ID,
		Name:          product.Name,
		Category:      product.Category,
		Price:         product.Price,
		IsAdultOnly:   product.IsAdultOnly,
		ImageURL:      product.ImageURL,
		DetailURL:     product.DetailURL,
		Description:   product.Description,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ClearSlot removes the binding and resets capacity. The kiosk product
// snapshot is kept for reuse.
func (s *service) ClearSlot(ctx context.Context, kioskID, slotID int64) (*SlotDTO, error) {
	err := s.mutateConfig(ctx, kioskID, ReasonSlotClear, func(ctx context.Context, repo *Repository, now time.Time) error {
		if _, err := repo.FindSlot(ctx, kioskID, slotID); err != nil {
			return notFound(err, "slot not found")
		}
		if _, err := repo.DeleteBinding(ctx, slotID); err != nil {
			return err
		}
		return repo.SetSlotCapacity(ctx, slotID, 0, now)
	})
	if err != nil {
		return nil, err
	}
	return s.slot(ctx, kioskID, slotID)
}

// AdjustStock moves the slot counter by delta, clamped at zero. Stock is the
// inventory channel and leaves config_version alone.
func (s *service) AdjustStock(ctx context.Context, kioskID, slotID int64, delta int) (*SlotDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindSlot(ctx, kioskID, slotID); err != nil {
			return notFound(err, "slot not found")
		}
		binding, err := repo.LockBinding(ctx, slotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "slot has no product bound")
			}
			return err
		}
		return repo.UpdateStock(ctx, slotID, max(binding.CurrentStock+delta, 0), nil, s.now().UTC())
	})
	if err != nil {
		return nil, mapStorageError(err, "adjust stock")
	}
	return s.slot(ctx, kioskID, slotID)
}

func (s *service) slot(ctx context.Context, kioskID, slotID int64) (*SlotDTO, error) {
	row, err := s.repo.FindSlotRow(ctx, kioskID, slotID)
	if err != nil {
		return nil, mapStorageError(err, "load slot")
	}
	dto := slotFromRow(*row)
	return &dto, nil
}

func (s *service) ListKioskProducts(ctx context.Context, kioskID int64) ([]KioskProductDTO, error) {
	if _, err := s.requireKiosk(ctx, kioskID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListKioskProducts(ctx, kioskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list kiosk products")
	}
	out := make([]KioskProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, kioskProductFromModel(&rows[i]))
	}
	return out, nil
}

// UpdateKioskProduct edits one kiosk's snapshot. The master product and other
// kiosks are untouched.
func (s *service) UpdateKioskProduct(ctx context.Context, kioskID, kioskProductID int64, input UpdateProductInput) (*KioskProductDTO, error) {
	if input.Price != nil && *input.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	fields := input.fields()
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	err := s.mutateConfig(ctx, kioskID, ReasonKioskProductUpdate, func(ctx context.Context, repo *Repository, now time.Time) error {
		if _, err := repo.FindKioskProduct(ctx, kioskID, kioskProductID); err != nil {
			return notFound(err, "kiosk product not found")
		}
		fields["updated_at"] = now
		return repo.UpdateKioskProductFields(ctx, kioskProductID, fields)
	})
	if err != nil {
		return nil, err
	}
	kp, err := s.repo.FindKioskProduct(ctx, kioskID, kioskProductID)
	if err != nil {
		return nil, mapStorageError(err, "load kiosk product")
	}
	dto := kioskProductFromModel(kp)
	return &dto, nil
}

func (s *service) ListScreensaver(ctx context.Context, kioskID int64) ([]ScreenImageDTO, error) {
	if _, err := s.requireKiosk(ctx, kioskID); err != nil {
		return nil, err
	}
	images, err := s.repo.ListScreenImages(ctx, kioskID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list screensaver images")
	}
	out := make([]ScreenImageDTO, 0, len(images))
	for i := range images {
		out = append(out, screenImageFromModel(&images[i]))
	}
	return out, nil
}

// UploadScreensaver stores the file first and then records it; a failed
// upload leaves config_version untouched.
func (s *service) UploadScreensaver(ctx context.Context, kioskID int64, filename, contentType string, body io.Reader) (*ScreenImageDTO, error) {
	if s.uploader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "object storage not configured")
	}
	kiosk, err := s.requireKiosk(ctx, kioskID)
	if err != nil {
		return nil, err
	}
	if !isImageFile(filename) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file must be a png, jpg, gif or webp image")
	}
	url, err := s.uploader.Upload(ctx, path.Join("kiosk", kiosk.Code, "screensaver"), filename, contentType, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload screensaver image")
	}
	return s.AddScreensaverURL(ctx, kioskID, url)
}

func (s *service) AddScreensaverURL(ctx context.Context, kioskID int64, imageURL string) (*ScreenImageDTO, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image_url is required")
	}
	var image models.KioskScreenImage
	err := s.mutateConfig(ctx, kioskID, ReasonScreensaverAdd, func(ctx context.Context, repo *Repository, now time.Time) error {
		next, err := repo.NextSortOrder(ctx, kioskID)
		if err != nil {
			return err
		}
		image = models.KioskScreenImage{
			KioskID:   kioskID,
			ImageURL:  imageURL,
			SortOrder: next,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repo.CreateScreenImage(ctx, &image)
	})
	if err != nil {
		return nil, err
	}
	dto := screenImageFromModel(&image)
	return &dto, nil
}

func (s *service) DeleteScreensaver(ctx context.Context, kioskID, imageID int64) error {
	return s.mutateConfig(ctx, kioskID, ReasonScreensaverDelete, func(ctx context.Context, repo *Repository, _ time.Time) error {
		deleted, err := repo.DeleteScreenImage(ctx, kioskID, imageID)
		if err != nil {
			return err
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "screensaver image not found")
		}
		return nil
	})
}

func isImageFile(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	default:
		return false
	}
}

func notFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}

func mapStorageError(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
