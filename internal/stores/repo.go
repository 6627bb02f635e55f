package stores

import (
	"context"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository handles store persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new store row.
func (r *Repository) Create(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

// FindByID loads a store by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// List returns every store ordered by id.
func (r *Repository) List(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}
