package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.Car)(nil),
			(*models.COEResult)(nil),
			(*models.FileChecksum)(nil),
			(*models.UpdateRun)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("create table: %w", err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.UpdateRun)(nil),
			(*models.FileChecksum)(nil),
			(*models.COEResult)(nil),
			(*models.Car)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
		return nil
	})
}
