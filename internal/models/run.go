package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UpdateRun tracks one update run for a table and its outcome.
type UpdateRun struct {
	bun.BaseModel `bun:"table:update_runs,alias:ur"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	RunID            string     `bun:"run_id,unique,notnull" json:"run_id"`
	TableName        string     `bun:"table_name,notnull" json:"table"`
	StartTime        time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime          *time.Time `bun:"end_time" json:"end_time,omitempty"`
	Status           RunStatus  `bun:"status,notnull" json:"status"`
	RecordsProcessed int        `bun:"records_processed,default:0" json:"records_processed"`
	Message          *string    `bun:"message" json:"message,omitempty"`
	ErrorLog         *string    `bun:"error_log" json:"error_log,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r *UpdateRun) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
