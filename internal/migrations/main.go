package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/logger"
)

// Migrations are registered by the <timestamp>_<name>.go files of this
// package; bun derives each migration name from the registering file.
var Migrations = migrate.NewMigrations()

// RunMigrations runs all pending migrations.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	log := logger.Get()
	migrator := migrate.NewMigrator(db, Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}

	if group.IsZero() {
		log.Debug().Msg("No new migrations to run")
		return nil
	}

	log.Info().Str("group", group.String()).Msg("Migrated database")
	return nil
}
