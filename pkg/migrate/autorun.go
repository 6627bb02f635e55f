package migrate

import (
	"context"
	"fmt"

	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. A sqlite database is built from the models instead of goose.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.IsSQLite() {
		ctx = logg.WithField(ctx, "driver", config.DBDriverSQLite)
		logg.Info(ctx, "auto-migrating models (dev auto-run)")
		if err := AutoMigrateModels(client); err != nil {
			return err
		}
		logg.Info(ctx, "model auto-migration completed")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running embedded goose migrations (dev auto-run)")
	results, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(results)), "goose migrations completed")
	return nil
}

// AutoMigrateModels creates every table straight from the gorm models.
func AutoMigrateModels(client *db.Client) error {
	if client == nil || client.DB() == nil {
		return fmt.Errorf("db client is required")
	}
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	return nil
}
