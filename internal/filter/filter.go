// Package filter narrows contract tables by per-column conditions.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/normalize"
)

type kind int

const (
	kindNone kind = iota
	kindRange
	kindIn
	kindMatch
)

// Value is the condition applied to one column. The zero Value matches every
// row.
type Value struct {
	kind    kind
	lo, hi  any
	values  []any
	pattern string
}

// Between keeps rows whose value lies in [lo, hi]. Bounds are numbers for
// numeric columns and dates (time.Time or a date string) for date columns;
// comparison on dates is by calendar day. A nil bound is open.
func Between(lo, hi any) Value {
	return Value{kind: kindRange, lo: lo, hi: hi}
}

// In keeps rows whose value, rendered as text, equals one of values. Slice
// and array members are flattened, so In([]string{"a", "b"}) equals
// In("a", "b").
func In(values ...any) Value {
	return Value{kind: kindIn, values: values}
}

// Match keeps rows whose value contains pattern, ignoring case.
func Match(pattern string) Value {
	return Value{kind: kindMatch, pattern: pattern}
}

// IsZero reports whether v filters nothing.
func (v Value) IsZero() bool {
	switch v.kind {
	case kindRange:
		return isNil(v.lo) && isNil(v.hi)
	case kindIn:
		return len(v.values) == 0
	case kindMatch:
		return v.pattern == ""
	default:
		return true
	}
}

// Spec maps column names to conditions. Conditions are combined with AND.
type Spec map[string]Value

var (
	errRangeOnText = errors.New("range filter on a text column")
	errBadBound    = errors.New("invalid range bound")
	errBadMember   = errors.New("invalid set member")
)

// Engine applies specs, logging the ones it rejects.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Apply filters table with the default engine.
func Apply(table models.Table, spec Spec) models.Table {
	return NewEngine(nil).Apply(table, spec)
}

// Apply returns the rows of table satisfying every condition in spec, in
// their original order. If any condition is invalid the whole spec is
// ignored and table is returned unchanged.
func (e *Engine) Apply(table models.Table, spec Spec) models.Table {
	preds, err := compile(table, spec)
	if err != nil {
		e.logger.Warn("filter rejected, returning unfiltered table", "error", err)
		return table
	}
	if len(preds) == 0 {
		return table
	}

	out := make(models.Table, 0, len(table))
	for i := range table {
		if matchesAll(&table[i], preds) {
			out = append(out, table[i])
		}
	}
	return out
}

type predicate func(c *models.Contract) bool

func matchesAll(c *models.Contract, preds []predicate) bool {
	for _, p := range preds {
		if !p(c) {
			return false
		}
	}
	return true
}

func compile(table models.Table, spec Spec) ([]predicate, error) {
	columns := make([]string, 0, len(spec))
	for col := range spec {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	preds := make([]predicate, 0, len(spec))
	for _, col := range columns {
		v := spec[col]
		if v.IsZero() {
			continue
		}
		if !table.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownColumn, col)
		}
		p, err := compileValue(col, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileValue(col string, v Value) (predicate, error) {
	switch v.kind {
	case kindIn:
		members, err := flatten(nil, v.values)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("%w: empty set", errBadMember)
		}
		set := make(map[string]struct{}, len(members))
		for _, x := range members {
			set[render(x)] = struct{}{}
		}
		return func(c *models.Contract) bool {
			s, ok := c.Text(col)
			if !ok {
				return false
			}
			_, hit := set[s]
			return hit
		}, nil

	case kindMatch:
		needle := strings.ToLower(v.pattern)
		return func(c *models.Contract) bool {
			s, ok := c.Text(col)
			return ok && strings.Contains(strings.ToLower(s), needle)
		}, nil

	case kindRange:
		colKind, canonical := models.CanonicalColumn(col)
		switch {
		case canonical && colKind == models.KindText:
			return nil, errRangeOnText
		case canonical && colKind == models.KindDate:
			return dateRange(col, v.lo, v.hi)
		case canonical:
			return numberRange(col, v.lo, v.hi)
		case isDateBound(v.lo) || isDateBound(v.hi):
			return dateRange(col, v.lo, v.hi)
		default:
			return numberRange(col, v.lo, v.hi)
		}
	}
	return nil, fmt.Errorf("unsupported filter value")
}

func numberRange(col string, lo, hi any) (predicate, error) {
	loN, loSet, err := toNumber(lo)
	if err != nil {
		return nil, err
	}
	hiN, hiSet, err := toNumber(hi)
	if err != nil {
		return nil, err
	}
	return func(c *models.Contract) bool {
		n, ok := c.Number(col)
		if !ok {
			return false
		}
		return (!loSet || n >= loN) && (!hiSet || n <= hiN)
	}, nil
}

func dateRange(col string, lo, hi any) (predicate, error) {
	loD, loSet, err := toDay(lo)
	if err != nil {
		return nil, err
	}
	hiD, hiSet, err := toDay(hi)
	if err != nil {
		return nil, err
	}
	return func(c *models.Contract) bool {
		t, ok := c.Date(col)
		if !ok {
			return false
		}
		d := day(t)
		return (!loSet || d >= loD) && (!hiSet || d <= hiD)
	}, nil
}

// day collapses a timestamp to a sortable calendar day in its own location.
func day(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func isNil(b any) bool {
	if b == nil {
		return true
	}
	if t, ok := b.(*time.Time); ok && t == nil {
		return true
	}
	return false
}

func isDateBound(b any) bool {
	switch x := b.(type) {
	case time.Time, *time.Time:
		return !isNil(b)
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return false
		}
		return normalize.Date(x) != nil
	default:
		return false
	}
}

func toNumber(b any) (float64, bool, error) {
	switch x := b.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q", errBadBound, x)
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q is not a number", errBadBound, x)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %T on a numeric column", errBadBound, b)
	}
}

func toDay(b any) (int, bool, error) {
	switch x := b.(type) {
	case nil:
		return 0, false, nil
	case time.Time:
		return day(x), true, nil
	case *time.Time:
		if x == nil {
			return 0, false, nil
		}
		return day(*x), true, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, false, nil
		}
		t := normalize.Date(x)
		if t == nil {
			return 0, false, fmt.Errorf("%w: %q is not a date", errBadBound, x)
		}
		return day(*t), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %T on a date column", errBadBound, b)
	}
}

// flatten appends the scalar members of values to dst, expanding slices and
// arrays of any element type. Maps, structs and channels are rejected.
func flatten(dst, values []any) ([]any, error) {
	for _, x := range values {
		switch x.(type) {
		case nil:
			return nil, fmt.Errorf("%w: nil", errBadMember)
		case string, float64, float32, int, int64, json.Number, time.Time, models.DatasetTag:
			dst = append(dst, x)
			continue
		}
		rv := reflect.ValueOf(x)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			nested := make([]any, rv.Len())
			for i := range nested {
				nested[i] = rv.Index(i).Interface()
			}
			var err error
			if dst, err = flatten(dst, nested); err != nil {
				return nil, err
			}
		case reflect.String:
			dst = append(dst, rv.String())
		case reflect.Float32, reflect.Float64:
			dst = append(dst, rv.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst = append(dst, rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst = append(dst, rv.Uint())
		case reflect.Bool:
			dst = append(dst, x)
		default:
			return nil, fmt.Errorf("%w: %T", errBadMember, x)
		}
	}
	return dst, nil
}

// render formats set members the way Contract.Text formats column values.
func render(x any) string {
	switch v := x.(type) {
	case string:
		return v
	case float64:
		return models.FormatNumber(v)
	case float32:
		return models.FormatNumber(float64(v))
	case time.Time:
		return v.Format("2006-01-02")
	case models.DatasetTag:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
