package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
	"gorm.io/gorm"
)

type storeRepository interface {
	Create(ctx context.Context, store *models.Store) error
	FindByID(ctx context.Context, id int64) (*models.Store, error)
	List(ctx context.Context) ([]models.Store, error)
}

// Service exposes store operations.
type Service interface {
	Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error)
	GetByID(ctx context.Context, id int64) (*StoreDTO, error)
	List(ctx context.Context) ([]StoreDTO, error)
}

type service struct {
	repo storeRepository
}

// NewService builds a store service with the provided repository.
func NewService(repo storeRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}

	store := &models.Store{
		Code:            code,
		Name:            name,
		Status:          enums.StoreStatusActive.String(),
		CSPhone:         input.CSPhone,
		InstallLocation: input.InstallLocation,
		Address:         input.Address,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		if db.IsUniqueViolation(err, "uq_stores_code", "stores.code") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create store")
	}
	return FromModel(store), nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return FromModel(store), nil
}

func (s *service) List(ctx context.Context) ([]StoreDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stores")
	}
	out := make([]StoreDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}
