package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Partition and key indexes used by the updater diff.
func init() {
	indexes := []struct{ name, table, columns string }{
		{"idx_cars_month", "cars", "month"},
		{"idx_cars_key", "cars", "month, make, fuel_type, vehicle_type"},
		{"idx_coe_month", "coe", "month"},
		{"idx_coe_key", "coe", "month, bidding_no, vehicle_class"},
		{"idx_update_runs_table", "update_runs", "table_name, start_time"},
	}

	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, idx := range indexes {
			q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.name, idx.table, idx.columns)
			if db.Dialect().Name() == dialect.MySQL {
				q = fmt.Sprintf("CREATE INDEX %s ON %s(%s)", idx.name, idx.table, idx.columns)
			}
			if _, err := db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("create index %s: %w", idx.name, err)
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, idx := range indexes {
			q := fmt.Sprintf("DROP INDEX IF EXISTS %s", idx.name)
			if db.Dialect().Name() == dialect.MySQL {
				q = fmt.Sprintf("DROP INDEX %s ON %s", idx.name, idx.table)
			}
			if _, err := db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("drop index %s: %w", idx.name, err)
			}
		}
		return nil
	})
}
