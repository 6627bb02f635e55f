package kioskconfig

import (
	"context"

	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

type catalogReader interface {
	ListSlotRows(ctx context.Context, kioskID int64) ([]catalog.SlotRow, error)
	ListScreenImages(ctx context.Context, kioskID int64, activeOnly bool) ([]models.KioskScreenImage, error)
}

// Loader reads the slot graph and screensaver list and hands them to Build.
// Each call runs the multi-table join, so callers invoke it only when the
// device actually needs a fresh config.
type Loader struct {
	catalog catalogReader
}

func NewLoader(reader catalogReader) *Loader {
	return &Loader{catalog: reader}
}

func (l *Loader) Load(ctx context.Context, kiosk *models.Kiosk) (*KioskConfig, error) {
	rows, err := l.catalog.ListSlotRows(ctx, kiosk.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kiosk slots")
	}
	images, err := l.catalog.ListScreenImages(ctx, kiosk.ID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load screensaver images")
	}
	cfg := Build(kiosk, rows, images)
	return &cfg, nil
}
