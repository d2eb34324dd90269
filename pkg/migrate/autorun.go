package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/orderdesk/orderdesk-backend/pkg/config"
	"github.com/orderdesk/orderdesk-backend/pkg/db"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup. It only acts in the
// dev environment with ORDERDESK_AUTO_MIGRATE set; everywhere else schema
// changes go through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !autoMigrateEnabled(cfg.App) {
		return nil
	}
	if client == nil {
		return fmt.Errorf("db client required for auto-migrate")
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}

	from, to, err := applyPending(ctx, sqlDB)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "from_version": from, "to_version": to})
	if from == to {
		logg.Debug(ctx, "schema already current")
		return nil
	}
	logg.Info(ctx, "schema migrated on startup")
	return nil
}

func autoMigrateEnabled(app config.AppConfig) bool {
	return app.AutoMigrate && app.IsDev()
}

// applyPending runs every pending embedded migration and reports the schema
// version before and after.
func applyPending(ctx context.Context, sqlDB *sql.DB) (int64, int64, error) {
	if _, err := prepare(sqlDB, DefaultDir); err != nil {
		return 0, 0, err
	}
	from, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, 0, fmt.Errorf("read schema version: %w", err)
	}
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return from, from, err
	}
	to, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return from, from, fmt.Errorf("read schema version: %w", err)
	}
	return from, to, nil
}
