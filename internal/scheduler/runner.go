// Package scheduler runs table updates on demand and on cron schedules,
// never more than one at a time per table.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

var (
	ErrAlreadyRunning = errors.New("update already running")
	ErrUnknownTable   = errors.New("unknown table")
)

// TableUpdater is satisfied by *updater.Updater.
type TableUpdater interface {
	Update(ctx context.Context) (updater.Result, error)
}

// RunStore persists run history. See repositories.RunStore.
type RunStore interface {
	Start(ctx context.Context, table string) (*models.UpdateRun, error)
	Finish(ctx context.Context, run *models.UpdateRun) error
	Recent(ctx context.Context, table string, limit int) ([]*models.UpdateRun, error)
}

// Runner owns the updaters of all tracked tables.
type Runner struct {
	mu       sync.RWMutex
	updaters map[string]TableUpdater

	runs  RunStore
	guard runningGuard
	log   zerolog.Logger

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewRunner creates a runner. runs may be nil to skip run history.
func NewRunner(runs RunStore, log zerolog.Logger) *Runner {
	return &Runner{
		updaters: make(map[string]TableUpdater),
		runs:     runs,
		log:      log,
	}
}

// Register adds or replaces the updater for table.
func (r *Runner) Register(table string, u TableUpdater) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updaters[table] = u
}

// Tables returns the registered table names, sorted.
func (r *Runner) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.updaters))
	for name := range r.updaters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Running reports whether an update of table is in flight.
func (r *Runner) Running(table string) bool {
	return r.guard.Running(table)
}

// RunTable updates one table. A second call for the same table while the
// first is in flight fails with ErrAlreadyRunning.
func (r *Runner) RunTable(ctx context.Context, table string) (updater.Result, error) {
	r.mu.RLock()
	u, ok := r.updaters[table]
	r.mu.RUnlock()
	if !ok {
		return updater.Result{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if !r.guard.TryLock(table) {
		r.log.Warn().Str("table", table).Msg("Update skipped, previous run still in progress")
		return updater.Result{}, fmt.Errorf("%w: %s", ErrAlreadyRunning, table)
	}
	defer r.guard.Unlock(table)

	run := r.startRun(ctx, table)
	res, err := u.Update(ctx)
	r.finishRun(ctx, run, res, err)
	return res, err
}

// RunAll updates every table in name order. Failures do not stop the
// remaining tables and are returned together.
func (r *Runner) RunAll(ctx context.Context) ([]updater.Result, error) {
	var result error
	var results []updater.Result
	for _, table := range r.Tables() {
		res, err := r.RunTable(ctx, table)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		results = append(results, res)
	}
	return results, result
}

// Recent returns the latest recorded runs of table.
func (r *Runner) Recent(ctx context.Context, table string, limit int) ([]*models.UpdateRun, error) {
	r.mu.RLock()
	_, ok := r.updaters[table]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if r.runs == nil {
		return nil, nil
	}
	return r.runs.Recent(ctx, table, limit)
}

// Start schedules table updates by cron expression (standard five fields).
// Tables without an expression are only run on demand.
func (r *Runner) Start(ctx context.Context, schedules map[string]string) error {
	c := cron.New()
	for table, expr := range schedules {
		if expr == "" {
			continue
		}
		_, err := c.AddFunc(expr, func() {
			if _, err := r.RunTable(ctx, table); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				r.log.Error().Err(err).Str("table", table).Msg("Scheduled update failed")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", table, expr, err)
		}
		r.log.Info().Str("table", table).Str("schedule", expr).Msg("Scheduled table update")
	}

	r.cronMu.Lock()
	defer r.cronMu.Unlock()
	if r.cron != nil {
		r.cron.Stop()
	}
	r.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduler and waits for in-flight runs or ctx.
func (r *Runner) Stop(ctx context.Context) {
	r.cronMu.Lock()
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}
	r.cronMu.Unlock()
	r.guard.WaitAll(ctx)
}

func (r *Runner) startRun(ctx context.Context, table string) *models.UpdateRun {
	if r.runs == nil {
		return nil
	}
	run, err := r.runs.Start(ctx, table)
	if err != nil {
		r.log.Warn().Err(err).Str("table", table).Msg("Could not record run start")
		return nil
	}
	return run
}

func (r *Runner) finishRun(ctx context.Context, run *models.UpdateRun, res updater.Result, err error) {
	if run == nil {
		return
	}
	run.Status = Status(res, err)
	run.RecordsProcessed = res.RecordsProcessed
	if err != nil {
		msg := err.Error()
		run.ErrorLog = &msg
	} else {
		msg := res.Message
		run.Message = &msg
	}
	// The run is recorded even if the update context was cancelled.
	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Could not record run result")
	}
}

// Status maps an update outcome to a run status.
func Status(res updater.Result, err error) models.RunStatus {
	switch {
	case err != nil:
		return models.RunError
	case res.Message == updater.MessageUnchanged:
		return models.RunUnchanged
	case res.Message == updater.MessageNoNewData:
		return models.RunNoNewData
	default:
		return models.RunSuccess
	}
}
