// Package updater brings a dataset table up to date with its published
// source, inserting only records the store does not hold yet.
package updater

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/checksum"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/csvparse"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/fetcher"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// Fetcher retrieves source files.
type Fetcher interface {
	Download(ctx context.Context, url, filename string) (string, error)
	FetchAndExtract(ctx context.Context, url string) (map[string]string, error)
}

// releaser is implemented by fetchers whose files should be removed once a
// run has finished with them.
type releaser interface {
	Release(path string) error
}

// Parser turns a local CSV into records.
type Parser interface {
	Parse(path string, opts csvparse.Options) ([]models.Record, error)
}

// ChecksumStore remembers the checksum of the last processed file.
type ChecksumStore interface {
	Get(ctx context.Context, id string) (string, bool, error)
	Put(ctx context.Context, id, sum string) error
}

// Store is the target table. It is only ever read and appended to.
type Store interface {
	ExistingPartitions(ctx context.Context, table, field string, values []any) ([]any, error)
	ExistingRecords(ctx context.Context, table string, fields []string, partitionField string, values []any) ([]models.Record, error)
	Insert(ctx context.Context, table string, records []models.Record) (int, error)
}

// CacheInvalidator drops derived caches once a table has changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, table string) error
}

// Updater runs incremental updates for a single table. It is not safe to
// run Update concurrently for the same table.
type Updater struct {
	desc        Descriptor
	fetcher     Fetcher
	parser      Parser
	checksums   ChecksumStore
	store       Store
	invalidator CacheInvalidator
	log         zerolog.Logger
	now         func() time.Time
	hash        func(path string) (string, error)
}

type Option func(*Updater)

func WithInvalidator(inv CacheInvalidator) Option {
	return func(u *Updater) { u.invalidator = inv }
}

func WithLogger(l zerolog.Logger) Option {
	return func(u *Updater) { u.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// New validates desc and wires the collaborators.
func New(desc Descriptor, f Fetcher, p Parser, checksums ChecksumStore, store Store, opts ...Option) (*Updater, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if f == nil || p == nil || checksums == nil || store == nil {
		return nil, fmt.Errorf("updater %s: fetcher, parser, checksum store and store are required", desc.Table)
	}

	u := &Updater{
		desc:      desc,
		fetcher:   f,
		parser:    p,
		checksums: checksums,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		hash:      checksum.Compute,
	}
	u.log = log.Logger
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.With().Str("table", desc.Table).Logger()
	return u, nil
}

// Update downloads the source, skips it when unchanged, and inserts the
// records missing from the store. The checksum is committed only after every
// batch has been written, so a failed run is safe to retry.
func (u *Updater) Update(ctx context.Context) (Result, error) {
	path, err := u.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer u.release(path)

	id := filepath.Base(path)
	sum, err := u.hash(path)
	if err != nil {
		return Result{}, u.fail(KindDownload, PhaseAcquire, path, err)
	}
	cached, ok, err := u.checksums.Get(ctx, id)
	if err != nil {
		return Result{}, u.fail(KindStore, PhaseAcquire, path, err)
	}
	if ok && cached == sum {
		u.log.Info().Str("file", id).Msg(MessageUnchanged)
		return u.result(0, MessageUnchanged), nil
	}

	records, err := u.parser.Parse(path, u.desc.parseOptions())
	if err != nil {
		return Result{}, u.fail(KindParse, PhaseParse, path, err)
	}
	if err := u.desc.validate(records); err != nil {
		return Result{}, u.fail(KindParse, PhaseParse, path, err)
	}
	u.log.Debug().Int("records", len(records)).Msg("Parsed source file")

	fresh, err := u.netNew(ctx, records)
	if err != nil {
		return Result{}, u.fail(KindStore, PhaseDiff, path, err)
	}

	if len(fresh) == 0 {
		if err := u.checksums.Put(ctx, id, sum); err != nil {
			return Result{}, u.fail(KindStore, PhaseCommit, path, err)
		}
		u.log.Info().Msg(MessageNoNewData)
		return u.result(0, MessageNoNewData), nil
	}

	inserted, err := u.insert(ctx, fresh)
	if err != nil {
		return Result{}, u.fail(KindStore, PhaseInsert, path, err)
	}

	if err := u.checksums.Put(ctx, id, sum); err != nil {
		return Result{}, u.fail(KindStore, PhaseCommit, path, err)
	}

	if u.invalidator != nil {
		if err := u.invalidator.Invalidate(ctx, u.desc.Table); err != nil {
			u.log.Warn().Err(err).Msg("Cache invalidation failed")
		}
	}

	msg := InsertedMessage(inserted)
	u.log.Info().Int("records", inserted).Msg(msg)
	return u.result(inserted, msg), nil
}

// acquire returns the local path of the CSV to process.
func (u *Updater) acquire(ctx context.Context) (string, error) {
	if u.desc.CSVFileName == "" {
		path, err := u.fetcher.Download(ctx, u.desc.SourceURL, "")
		if err != nil {
			return "", u.fail(KindDownload, PhaseAcquire, "", err)
		}
		return path, nil
	}

	entries, err := u.fetcher.FetchAndExtract(ctx, u.desc.SourceURL)
	if err != nil {
		return "", u.fail(KindDownload, PhaseAcquire, "", err)
	}
	path, err := fetcher.Entry(entries, u.desc.CSVFileName)
	if err != nil {
		return "", u.fail(KindArchiveIntegrity, PhaseAcquire, "", err)
	}
	return path, nil
}

func (u *Updater) release(path string) {
	r, ok := u.fetcher.(releaser)
	if !ok {
		return
	}
	if err := r.Release(path); err != nil {
		u.log.Warn().Err(err).Str("path", path).Msg("Could not remove source file")
	}
}

func (u *Updater) insert(ctx context.Context, records []models.Record) (int, error) {
	size := u.desc.batchSize()
	total := 0
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		n, err := u.store.Insert(ctx, u.desc.Table, records[start:end])
		if err != nil {
			return total, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		total += n
		u.log.Debug().Int("batch_start", start).Int("rows", n).Msg("Inserted batch")
	}
	return total, nil
}

func (u *Updater) fail(kind Kind, phase Phase, path string, err error) error {
	var missing *fetcher.MissingEntryError
	if errors.As(err, &missing) {
		kind = KindArchiveIntegrity
	}
	u.log.Error().Err(err).Str("phase", string(phase)).Str("kind", string(kind)).Str("path", path).Msg("Update failed")
	return &Error{Kind: kind, Table: u.desc.Table, Phase: phase, Path: path, Err: err}
}

func (u *Updater) result(n int, msg string) Result {
	return Result{Table: u.desc.Table, RecordsProcessed: n, Message: msg, Timestamp: u.now()}
}
