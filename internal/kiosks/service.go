package kiosks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"github.com/vendkiosk/kiosk-backend/pkg/pagination"
	"github.com/vendkiosk/kiosk-backend/pkg/security"
	"gorm.io/gorm"
)

const (
	defaultGridRows = 8
	defaultGridCols = 10
	createAttempts  = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type kioskRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Kiosk, error)
	List(ctx context.Context, storeID *int64) ([]models.Kiosk, error)
	LockByIDWithTx(tx *gorm.DB, id int64) (*models.Kiosk, error)
	StoreExistsWithTx(tx *gorm.DB, storeID int64) (bool, error)
	CreateWithTx(tx *gorm.DB, kiosk *models.Kiosk) error
	UpdateFieldsWithTx(tx *gorm.DB, id int64, fields map[string]any) error
	BumpConfigVersionWithTx(tx *gorm.DB, id int64, now time.Time) (int64, error)
	PairCodeTakenWithTx(tx *gorm.DB, code string) (bool, error)
	UsedPairCodesWithTx(tx *gorm.DB) ([]string, error)
	ListStatusLogs(ctx context.Context, kioskID int64, after *pagination.Cursor, limit int) ([]models.KioskStatusLog, error)
}

// Service exposes the admin side of the kiosk registry.
type Service interface {
	Create(ctx context.Context, input CreateKioskInput) (*KioskDTO, error)
	Get(ctx context.Context, id int64) (*KioskDTO, error)
	List(ctx context.Context, storeID *int64) ([]KioskDTO, error)
	Update(ctx context.Context, id int64, input UpdateKioskInput) (*KioskDTO, error)
	RotateAPIKey(ctx context.Context, id int64) (*KioskDTO, error)
	ListStatusLogs(ctx context.Context, id int64, page pagination.Params) (*StatusLogPage, error)
}

// ServiceParams wires the kiosk service.
type ServiceParams struct {
	Tx             txRunner
	Repo           kioskRepository
	Allocator      *PairCodeAllocator
	Logger         *logger.Logger
	Metrics        *metrics.KioskMetrics
	GridRows       int
	GridCols       int
	DefaultImage   string
	Now            func() time.Time
	GenerateAPIKey func() (string, error)
}

type service struct {
	tx           txRunner
	repo         kioskRepository
	allocator    *PairCodeAllocator
	logg         *logger.Logger
	metrics      *metrics.KioskMetrics
	rows, cols   int
	defaultImage string
	now          func() time.Time
	newAPIKey    func() (string, error)
}

// NewService builds the kiosk registry service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("kiosk repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		tx:           params.Tx,
		repo:         params.Repo,
		allocator:    params.Allocator,
		logg:         params.Logger,
		metrics:      params.Metrics,
		rows:         params.GridRows,
		cols:         params.GridCols,
		defaultImage: params.DefaultImage,
		now:          params.Now,
		newAPIKey:    params.GenerateAPIKey,
	}
	if s.allocator == nil {
		s.allocator = NewPairCodeAllocator()
	}
	if s.rows <= 0 {
		s.rows = defaultGridRows
	}
	if s.cols <= 0 {
		s.cols = defaultGridCols
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newAPIKey == nil {
		s.newAPIKey = security.GenerateAPIKey
	}
	return s, nil
}

// Create inserts the kiosk together with its slot grid, default screensaver
// image and pairing code in one transaction.
func (s *service) Create(ctx context.Context, input CreateKioskInput) (*KioskDTO, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.StoreID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store_id is required")
	}

	var apiKey *string
	if input.GenerateAPIKey {
		key, err := s.newAPIKey()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
		}
		apiKey = &key
	}

	var created *models.Kiosk
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		created, err = s.createOnce(ctx, input, code, name, apiKey)
		if err == nil || !db.IsUniqueViolation(err, "uq_kiosks_pair_code_4", "kiosks.pair_code_4") {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "kiosk.create.pair_code_race")
	}
	if err != nil {
		return nil, mapCreateError(err)
	}

	ctx = s.logg.WithKioskID(ctx, created.ID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"kiosk_code": created.Code,
		"slots":      s.rows * s.cols,
	}), "kiosk.created")
	return FromModel(created), nil
}

func (s *service) createOnce(ctx context.Context, input CreateKioskInput, code, name string, apiKey *string) (*models.Kiosk, error) {
	now := s.now().UTC()
	var kiosk *models.Kiosk
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.StoreExistsWithTx(tx, input.StoreID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}

		pairCode, err := s.allocator.Allocate(txPairCodes{repo: s.repo, tx: tx})
		if err != nil {
			return err
		}

		kiosk = &models.Kiosk{
			StoreID:       input.StoreID,
			Code:          code,
			Name:          name,
			LocationHint:  input.LocationHint,
			IsActive:      true,
			APIKey:        apiKey,
			KioskPassword: input.KioskPassword,
			PairCode4:     &pairCode,
			ConfigVersion: 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateWithTx(tx, kiosk); err != nil {
			return err
		}

		slots := buildGrid(kiosk.ID, s.rows, s.cols, now)
		if err := tx.CreateInBatches(&slots, 100).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create slot grid")
		}

		if s.defaultImage != "" {
			image := models.KioskScreenImage{
				KioskID:   kiosk.ID,
				ImageURL:  s.defaultImage,
				SortOrder: 1,
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&image).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create default screensaver")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kiosk, nil
}

func mapCreateError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	switch {
	case db.IsUniqueViolation(err, "uq_kiosks_code", "kiosks.code"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "kiosk code already exists")
	case db.IsUniqueViolation(err, "uq_kiosks_pair_code_4", "kiosks.pair_code_4"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique pair code")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create kiosk")
	}
}

func (s *service) Get(ctx context.Context, id int64) (*KioskDTO, error) {
	kiosk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(kiosk), nil
}

func (s *service) List(ctx context.Context, storeID *int64) ([]KioskDTO, error) {
	rows, err := s.repo.List(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list kiosks")
	}
	out := make([]KioskDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Update applies admin edits. Name and password are part of what a device
// receives, so changing either bumps config_version; activation does not.
func (s *service) Update(ctx context.Context, id int64, input UpdateKioskInput) (*KioskDTO, error) {
	now := s.now().UTC()
	var bumped int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		kiosk, err := s.repo.LockByIDWithTx(tx, id)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		affectsConfig := false
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			if name != kiosk.Name {
				fields["name"] = name
				affectsConfig = true
			}
		}
		if input.KioskPassword != nil && !equalPtr(kiosk.KioskPassword, input.KioskPassword) {
			fields["kiosk_password"] = *input.KioskPassword
			affectsConfig = true
		}
		if input.LocationHint != nil {
			fields["location_hint"] = *input.LocationHint
		}
		if input.IsActive != nil {
			fields["is_active"] = *input.IsActive
		}
		if len(fields) == 0 {
			return nil
		}
		if err := s.repo.UpdateFieldsWithTx(tx, id, fields); err != nil {
			return err
		}
		if affectsConfig {
			bumped, err = s.repo.BumpConfigVersionWithTx(tx, id, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, mapLookupError(err)
	}
	if bumped > 0 {
		s.metrics.IncConfigBump("kiosk_update")
		s.logg.Info(s.logg.WithFields(s.logg.WithKioskID(ctx, id), map[string]any{
			"config_version": bumped,
			"reason":         "kiosk_update",
		}), "kiosk.config_version.bumped")
	}
	return s.Get(ctx, id)
}

// RotateAPIKey replaces the device credential. The device gets 401 on its
// next call and re-handshakes to pick up the new key.
func (s *service) RotateAPIKey(ctx context.Context, id int64) (*KioskDTO, error) {
	key, err := s.newAPIKey()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.LockByIDWithTx(tx, id); err != nil {
			return err
		}
		return s.repo.UpdateFieldsWithTx(tx, id, map[string]any{"api_key": key})
	})
	if err != nil {
		return nil, mapLookupError(err)
	}
	s.logg.Info(s.logg.WithKioskID(ctx, id), "kiosk.api_key.rotated")
	return s.Get(ctx, id)
}

// ListStatusLogs pages through the heartbeat audit trail of one kiosk.
func (s *service) ListStatusLogs(ctx context.Context, id int64, page pagination.Params) (*StatusLogPage, error) {
	after, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, mapLookupError(err)
	}

	limit := pagination.NormalizeLimit(page.Limit)
	rows, err := s.repo.ListStatusLogs(ctx, id, after, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, mapLookupError(err)
	}

	out := &StatusLogPage{Items: make([]StatusLogDTO, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		out.NextCursor = &next
	}
	for _, row := range rows {
		out.Items = append(out.Items, statusLogFromModel(row))
	}
	return out, nil
}

func mapLookupError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "kiosk not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "kiosk storage")
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type txPairCodes struct {
	repo kioskRepository
	tx   *gorm.DB
}

func (p txPairCodes) PairCodeTaken(code string) (bool, error) {
	return p.repo.PairCodeTakenWithTx(p.tx, code)
}

func (p txPairCodes) UsedPairCodes() ([]string, error) {
	return p.repo.UsedPairCodesWithTx(p.tx)
}
