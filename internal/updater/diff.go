package updater

import (
	"context"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// netNew returns the records whose composite key is not in the store yet.
// Partitions with no stored rows are accepted without reading any rows;
// only partitions that already exist are fetched and diffed. Without a
// partition field the whole table is diffed. Repeated keys within records
// keep their first occurrence.
func (u *Updater) netNew(ctx context.Context, records []models.Record) ([]models.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	desc := u.desc

	if desc.PartitionField == "" {
		existing, err := u.store.ExistingRecords(ctx, desc.Table, desc.KeyFields, "", nil)
		if err != nil {
			return nil, err
		}
		return subtract(records, keySet(existing, desc.KeyFields), desc.KeyFields), nil
	}

	values, order := partitions(records, desc.PartitionField)
	found, err := u.store.ExistingPartitions(ctx, desc.Table, desc.PartitionField, values)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]bool, len(found))
	overlap := make([]any, 0, len(found))
	for _, v := range found {
		k := models.FormatValue(v)
		if !stored[k] {
			stored[k] = true
			overlap = append(overlap, v)
		}
	}
	u.log.Debug().
		Int("partitions", len(order)).
		Int("existing_partitions", len(overlap)).
		Msg("Checked existing partitions")

	seen := make(map[string]bool)
	if len(overlap) > 0 {
		existing, err := u.store.ExistingRecords(ctx, desc.Table, desc.KeyFields, desc.PartitionField, overlap)
		if err != nil {
			return nil, err
		}
		seen = keySet(existing, desc.KeyFields)
	}
	return subtract(records, seen, desc.KeyFields), nil
}

// partitions returns the distinct partition values in first-seen order.
func partitions(records []models.Record, field string) ([]any, []string) {
	seen := make(map[string]bool)
	var values []any
	var order []string
	for _, r := range records {
		v := r[field]
		k := models.FormatValue(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		values = append(values, v)
		order = append(order, k)
	}
	return values, order
}

func keySet(records []models.Record, fields []string) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.Key(fields)] = true
	}
	return set
}

// subtract keeps records whose key is not in seen. seen is extended as
// records are accepted.
func subtract(records []models.Record, seen map[string]bool, fields []string) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		k := r.Key(fields)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
