package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// TableStore reads and appends dataset rows for tables named at runtime.
type TableStore struct {
	db *bun.DB
}

// NewTableStore creates a store over db.
func NewTableStore(db *bun.DB) *TableStore {
	return &TableStore{db: db}
}

// ExistingPartitions returns which of values already occur in table.field.
func (s *TableStore) ExistingPartitions(ctx context.Context, table, field string, values []any) ([]any, error) {
	if len(values) == 0 {
		return nil, nil
	}

	where, args := partitionIn(field, values)
	var rows []map[string]interface{}
	err := s.db.NewSelect().
		TableExpr("?", bun.Ident(table)).
		Distinct().
		ColumnExpr("?", bun.Ident(field)).
		Where(where, args...).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select distinct %s.%s: %w", table, field, err)
	}

	found := make([]any, 0, len(rows))
	for _, row := range rows {
		found = append(found, normalize(row[field]))
	}
	return found, nil
}

// ExistingRecords returns table rows projected onto fields. When
// partitionField is set only rows in the given partitions are read,
// otherwise the whole table is.
func (s *TableStore) ExistingRecords(ctx context.Context, table string, fields []string, partitionField string, values []any) ([]models.Record, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("select %s: no fields", table)
	}
	if partitionField != "" && len(values) == 0 {
		return nil, nil
	}

	q := s.db.NewSelect().TableExpr("?", bun.Ident(table))
	for _, f := range fields {
		q = q.ColumnExpr("?", bun.Ident(f))
	}
	if partitionField != "" {
		where, args := partitionIn(partitionField, values)
		q = q.Where(where, args...)
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(models.Record, len(fields))
		for _, f := range fields {
			rec[f] = normalize(row[f])
		}
		records = append(records, rec)
	}
	return records, nil
}

// Insert writes records with a single multi-row INSERT in a transaction.
// Columns are the union of the records' fields; missing values are NULL.
func (s *TableStore) Insert(ctx context.Context, table string, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	columns := unionColumns(records)
	args := make([]interface{}, 0, 1+len(columns)+len(records))
	args = append(args, bun.Ident(table))
	for _, c := range columns {
		args = append(args, bun.Ident(c))
	}
	for _, rec := range records {
		row := make([]interface{}, len(columns))
		for i, c := range columns {
			if v := rec[c]; v != nil {
				row[i] = v
			} else {
				row[i] = bun.Safe("NULL")
			}
		}
		args = append(args, bun.In(row))
	}

	query := "INSERT INTO ? (" + placeholders(len(columns), "?") + ") VALUES " + placeholders(len(records), "(?)")

	var inserted int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		inserted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert %d rows into %s: %w", len(records), table, err)
	}
	return int(inserted), nil
}

// partitionIn matches field against values. A nil value never matches IN,
// so it is tested with IS NULL instead.
func partitionIn(field string, values []any) (string, []any) {
	present := make([]any, 0, len(values))
	hasNil := false
	for _, v := range values {
		if v == nil {
			hasNil = true
			continue
		}
		present = append(present, v)
	}

	col := bun.Ident(field)
	switch {
	case hasNil && len(present) == 0:
		return "? IS NULL", []any{col}
	case hasNil:
		return "(? IN (?) OR ? IS NULL)", []any{col, bun.In(present), col}
	default:
		return "? IN (?)", []any{col, bun.In(present)}
	}
}

func unionColumns(records []models.Record) []string {
	seen := make(models.Record)
	for _, rec := range records {
		for k := range rec {
			seen[k] = nil
		}
	}
	return seen.Columns()
}

func placeholders(n int, p string) string {
	return strings.TrimSuffix(strings.Repeat(p+", ", n), ", ")
}

// normalize turns driver byte slices into strings so scanned values
// compare like CSV values.
func normalize(v interface{}) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
