package csvparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Trim removes surrounding whitespace from string values.
func Trim(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s), nil
	}
	return v, nil
}

// Uppercase upper-cases string values, e.g. vehicle make codes.
func Uppercase(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strings.ToUpper(s), nil
	}
	return v, nil
}

// StripThousands removes thousands separators from string values.
func StripThousands(v any) (any, error) {
	if s, ok := v.(string); ok {
		return strings.ReplaceAll(s, ",", ""), nil
	}
	return v, nil
}

// Number parses a value into float64. Empty strings and the portal's
// placeholder "-" become 0.
func Number(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" || s == "-" {
			return float64(0), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return float64(0), nil
	default:
		return nil, fmt.Errorf("unsupported numeric value %T", v)
	}
}

// Integer parses a value into int64, rejecting fractional numbers.
func Integer(v any) (any, error) {
	if i, ok := v.(int64); ok {
		return i, nil
	}
	f, err := Number(v)
	if err != nil {
		return nil, err
	}
	n := f.(float64)
	if n != math.Trunc(n) {
		return nil, fmt.Errorf("not an integer: %v", v)
	}
	return int64(n), nil
}

// Chain applies fns in order.
func Chain(fns ...TransformFunc) TransformFunc {
	return func(v any) (any, error) {
		var err error
		for _, fn := range fns {
			if v, err = fn(v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
}

var builtins = map[string]TransformFunc{
	"trim":            Trim,
	"uppercase":       Uppercase,
	"strip_thousands": StripThousands,
	"number":          Number,
	"integer":         Integer,
}

// Lookup resolves a builtin transform by its configuration name.
func Lookup(name string) (TransformFunc, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return fn, nil
}

// LookupChain resolves names and chains them in order.
func LookupChain(names []string) (TransformFunc, error) {
	fns := make([]TransformFunc, 0, len(names))
	for _, name := range names {
		fn, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return Chain(fns...), nil
}
