// Package csvparse turns dataset CSV files into records.
package csvparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
)

// TransformFunc coerces one field value. It receives either the raw CSV
// string or a value already converted by an earlier transform.
type TransformFunc func(v any) (any, error)

// Options control column renaming and value coercion.
type Options struct {
	// ColumnMapping renames source headers to target field names.
	ColumnMapping map[string]string
	// FieldTransforms run on the target field name, after renaming.
	FieldTransforms map[string]TransformFunc
}

// ParseError is a malformed CSV or a failing field transform.
type ParseError struct {
	Path  string
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("parse %s line %d field %q: %v", e.Path, e.Line, e.Field, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
	default:
		return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser parses dataset CSV files.
type Parser struct{}

// Parse reads the CSV at path.
func (Parser) Parse(path string, opts Options) ([]models.Record, error) {
	return Parse(path, opts)
}

// Parse reads the CSV at path. The first row must be a header row. Empty
// files with only a header produce no records.
func Parse(path string, opts Options) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	records, err := Read(f, opts)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return records, nil
}

// Read parses CSV from r.
func Read(r io.Reader, opts Options) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	fields := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if mapped, ok := opts.ColumnMapping[h]; ok {
			h = mapped
		}
		fields[i] = h
	}

	result := make([]models.Record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &ParseError{Err: err}
		}
		line, _ := reader.FieldPos(0)

		rec := make(models.Record, len(fields))
		for i, name := range fields {
			var v any = strings.TrimSpace(row[i])
			if fn, ok := opts.FieldTransforms[name]; ok {
				if v, err = fn(v); err != nil {
					return nil, &ParseError{Line: line, Field: name, Err: err}
				}
			}
			rec[name] = v
		}
		result = append(result, rec)
	}
	return result, nil
}
