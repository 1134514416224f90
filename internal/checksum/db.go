package checksum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// DBStore keeps checksums in the file_checksums table.
type DBStore struct {
	db *bun.DB
}

// NewDBStore creates a database backed checksum store.
func NewDBStore(db *bun.DB) *DBStore {
	return &DBStore{db: db}
}

// Get returns the cached checksum for id.
func (s *DBStore) Get(ctx context.Context, id string) (string, bool, error) {
	row := new(models.FileChecksum)
	err := s.db.NewSelect().Model(row).Where("identifier = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get checksum %s: %w", id, err)
	}
	return row.Checksum, true, nil
}

// Put upserts the checksum for id.
func (s *DBStore) Put(ctx context.Context, id, sum string) error {
	row := &models.FileChecksum{Identifier: id, Checksum: sum, UpdatedAt: time.Now().UTC()}

	q := s.db.NewInsert().Model(row)
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("checksum = VALUES(checksum)").
			Set("updated_at = VALUES(updated_at)")
	} else {
		q = q.On("CONFLICT (identifier) DO UPDATE").
			Set("checksum = EXCLUDED.checksum").
			Set("updated_at = EXCLUDED.updated_at")
	}
	_, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("put checksum %s: %w", id, err)
	}
	return nil
}
