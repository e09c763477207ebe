package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on start when running in dev with
// CRM_AUTO_MIGRATE enabled. The directory is validated first so a malformed
// file fails fast instead of leaving the schema half applied.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if err := ValidateDir(DefaultDir); err != nil {
		return fmt.Errorf("validate migrations: %w", err)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	dialect := Dialect(cfg.DB.Driver)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "dialect": dialect})
	logg.Info(ctx, "running goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, dialect, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "goose migrations completed")
	return nil
}
