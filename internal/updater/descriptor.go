package updater

import (
	"errors"
	"fmt"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/csvparse"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// DefaultBatchSize bounds the rows written per INSERT.
const DefaultBatchSize = 500

// Descriptor describes one dataset table and where its source lives. It is
// built once per dataset and reused across runs.
type Descriptor struct {
	// Table is the target table name in the store.
	Table string
	// PartitionField is the natural batch boundary column, e.g. month.
	// Empty means every run diffs against the whole table.
	PartitionField string
	// KeyFields jointly identify a record within Table.
	KeyFields []string

	SourceURL string
	// CSVFileName selects one entry of a zip archive. Empty means SourceURL
	// points at the CSV itself.
	CSVFileName string

	ColumnMapping   map[string]string
	FieldTransforms map[string]csvparse.TransformFunc
	// ValidateRecord, when set, rejects a parsed row. One bad row fails the
	// run before anything is written.
	ValidateRecord func(models.Record) error
	BatchSize      int
}

// Validate reports descriptor fields that make a run impossible.
func (d *Descriptor) Validate() error {
	if d.Table == "" {
		return errors.New("descriptor: table is required")
	}
	if d.SourceURL == "" {
		return fmt.Errorf("descriptor %s: source url is required", d.Table)
	}
	if len(d.KeyFields) == 0 {
		return fmt.Errorf("descriptor %s: at least one key field is required", d.Table)
	}
	for _, f := range d.KeyFields {
		if f == "" {
			return fmt.Errorf("descriptor %s: empty key field", d.Table)
		}
	}
	if d.BatchSize < 0 {
		return fmt.Errorf("descriptor %s: batch size must not be negative", d.Table)
	}
	return nil
}

func (d *Descriptor) batchSize() int {
	if d.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return d.BatchSize
}

func (d *Descriptor) validate(records []models.Record) error {
	if d.ValidateRecord == nil {
		return nil
	}
	for i, r := range records {
		if err := d.ValidateRecord(r); err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *Descriptor) parseOptions() csvparse.Options {
	return csvparse.Options{ColumnMapping: d.ColumnMapping, FieldTransforms: d.FieldTransforms}
}
