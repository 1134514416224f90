package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

type stubUpdater struct {
	res     updater.Result
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (s *stubUpdater) Update(ctx context.Context) (updater.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return updater.Result{}, ctx.Err()
		}
	}
	return s.res, s.err
}

type memRuns struct {
	mu       sync.Mutex
	finished []*models.UpdateRun
	seq      int
}

func (m *memRuns) Start(_ context.Context, table string) (*models.UpdateRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return &models.UpdateRun{RunID: string(rune('a' + m.seq)), TableName: table, Status: models.RunRunning}, nil
}

func (m *memRuns) Finish(_ context.Context, run *models.UpdateRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, run)
	return nil
}

func (m *memRuns) Recent(_ context.Context, table string, _ int) ([]*models.UpdateRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.UpdateRun
	for _, r := range m.finished {
		if r.TableName == table {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestRunTableRecordsRun(t *testing.T) {
	runs := &memRuns{}
	r := NewRunner(runs, zerolog.Nop())
	r.Register("cars", &stubUpdater{res: updater.Result{Table: "cars", RecordsProcessed: 2, Message: updater.InsertedMessage(2)}})

	res, err := r.RunTable(context.Background(), "cars")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsProcessed)

	recent, err := r.Recent(context.Background(), "cars", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.RunSuccess, recent[0].Status)
	assert.Equal(t, "2 record(s) inserted", *recent[0].Message)
	assert.Nil(t, recent[0].ErrorLog)
}

func TestRunTableUnknown(t *testing.T) {
	r := NewRunner(nil, zerolog.Nop())
	_, err := r.RunTable(context.Background(), "bikes")
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = r.Recent(context.Background(), "bikes", 1)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestRunTableRejectsConcurrentRun(t *testing.T) {
	stub := &stubUpdater{started: make(chan struct{}, 1), release: make(chan struct{})}
	r := NewRunner(nil, zerolog.Nop())
	r.Register("coe", stub)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunTable(context.Background(), "coe")
		done <- err
	}()
	<-stub.started
	assert.True(t, r.Running("coe"))

	_, err := r.RunTable(context.Background(), "coe")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(stub.release)
	require.NoError(t, <-done)
	assert.False(t, r.Running("coe"))
	assert.Equal(t, 1, stub.calls)
}

func TestRunAllAggregatesErrors(t *testing.T) {
	runs := &memRuns{}
	r := NewRunner(runs, zerolog.Nop())
	r.Register("a", &stubUpdater{err: errors.New("download failed")})
	r.Register("b", &stubUpdater{res: updater.Result{Table: "b", Message: updater.MessageUnchanged}})
	r.Register("c", &stubUpdater{err: errors.New("store failed")})

	results, err := r.RunAll(context.Background())
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Table)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	require.Len(t, runs.finished, 3)
	assert.Equal(t, models.RunError, runs.finished[0].Status)
	assert.Equal(t, "download failed", *runs.finished[0].ErrorLog)
	assert.Equal(t, models.RunUnchanged, runs.finished[1].Status)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, models.RunError, Status(updater.Result{}, errors.New("x")))
	assert.Equal(t, models.RunUnchanged, Status(updater.Result{Message: updater.MessageUnchanged}, nil))
	assert.Equal(t, models.RunNoNewData, Status(updater.Result{Message: updater.MessageNoNewData}, nil))
	assert.Equal(t, models.RunSuccess, Status(updater.Result{Message: updater.InsertedMessage(1)}, nil))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	r := NewRunner(nil, zerolog.Nop())
	r.Register("cars", &stubUpdater{})
	err := r.Start(context.Background(), map[string]string{"cars": "not a cron"})
	assert.Error(t, err)

	require.NoError(t, r.Start(context.Background(), map[string]string{"cars": "@every 1h", "coe": ""}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

func TestStopWaitsForInFlightRuns(t *testing.T) {
	stub := &stubUpdater{started: make(chan struct{}, 1), release: make(chan struct{})}
	r := NewRunner(nil, zerolog.Nop())
	r.Register("cars", stub)

	go func() {
		_, _ = r.RunTable(context.Background(), "cars")
	}()
	<-stub.started

	stopped := make(chan struct{})
	go func() {
		r.Stop(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(stub.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
}
