package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
)

// NewDB opens the configured database with sane defaults and optional debug logging.
func NewDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	driver, dialect, err := resolve(cfg.Driver)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db := bun.NewDB(sqldb, dialect)

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if driver == sqliteshim.ShimName {
		// SQLite allows a single writer.
		sqldb.SetMaxOpenConns(1)

		if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA busy_timeout = 5000;
        PRAGMA cache_size = -64000;
    `); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return db, nil
}

// NewSQLite opens a SQLite database at dsn, mostly for tests and local runs.
func NewSQLite(dsn string) (*bun.DB, error) {
	return NewDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
}

func resolve(name string) (string, schema.Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite":
		return sqliteshim.ShimName, sqlitedialect.New(), nil
	case "postgres":
		return "postgres", pgdialect.New(), nil
	case "mysql":
		return "mysql", mysqldialect.New(), nil
	default:
		return "", nil, fmt.Errorf("unsupported database driver %q", name)
	}
}
