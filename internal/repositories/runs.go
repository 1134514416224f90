package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// RunStore records update runs in update_runs.
type RunStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewRunStore(db *bun.DB) *RunStore {
	return &RunStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Start inserts a running entry for table.
func (s *RunStore) Start(ctx context.Context, table string) (*models.UpdateRun, error) {
	run := &models.UpdateRun{
		RunID:     uuid.NewString(),
		TableName: table,
		StartTime: s.now(),
		Status:    models.RunRunning,
	}
	if _, err := s.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return nil, fmt.Errorf("start run for %s: %w", table, err)
	}
	return run, nil
}

// Finish stamps the end time and persists the run's outcome fields.
func (s *RunStore) Finish(ctx context.Context, run *models.UpdateRun) error {
	end := s.now()
	run.EndTime = &end

	_, err := s.db.NewUpdate().
		Model(run).
		Column("end_time", "status", "records_processed", "message", "error_log").
		Where("run_id = ?", run.RunID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns the latest runs for table, newest first.
func (s *RunStore) Recent(ctx context.Context, table string, limit int) ([]*models.UpdateRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*models.UpdateRun
	err := s.db.NewSelect().
		Model(&runs).
		Where("table_name = ?", table).
		OrderExpr("start_time DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", table, err)
	}
	return runs, nil
}
