package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// keySeparator joins key field values into a composite key.
const keySeparator = "|"

// Record is a single dataset row after column mapping and field transforms.
// Values are string, float64, int64 or nil.
type Record map[string]any

// Key returns the composite dedup key of the record projected onto fields.
func (r Record) Key(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = FormatValue(r[f])
	}
	return strings.Join(parts, keySeparator)
}

// Columns returns the record's field names in a stable order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Text returns field as a string, or "" when it is missing.
func (r Record) Text(field string) string {
	return FormatValue(r[field])
}

// Int returns field as an int64. Missing and empty values are 0.
func (r Record) Int(field string) (int64, error) {
	switch v := r[field].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%s: %v is not a whole number", field, v)
		}
		return int64(v), nil
	default:
		s := strings.TrimSpace(FormatValue(v))
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer", field, s)
		}
		return n, nil
	}
}

// FormatValue renders a scalar the same way regardless of whether it came
// from a CSV transform or a database scan, so 2024, int64(2024) and "2024"
// produce identical keys.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
