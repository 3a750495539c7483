package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

var (
	nonNumeric = regexp.MustCompile(`[^\d.-]`)
	leadingInt = regexp.MustCompile(`-?\d+`)
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"01/02/2006 03:04:05 PM",
}

// Currency converts a monetary value to a non-negative float. Plain numbers,
// exponent form included, parse as is. Otherwise currency symbols, separators
// and text are stripped; anything that still fails to parse, or is negative,
// becomes 0.
func Currency(v any) float64 {
	var s string
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return clampValue(x)
	case float32:
		return clampValue(float64(x))
	case int:
		return clampValue(float64(x))
	case int64:
		return clampValue(float64(x))
	case json.Number:
		s = x.String()
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}

	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return clampValue(f)
	}
	s = nonNumeric.ReplaceAllString(s, "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return clampValue(f)
}

func clampValue(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// Date parses a date or timestamp, returning nil when the value is missing
// or not a valid calendar date.
func Date(v any) *time.Time {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return &x
	case *time.Time:
		return x
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Int extracts a whole number from values like 30, "30" or "30 Dia(s)".
func Int(v any) *int {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return &x
	case float64:
		return intFromFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			i := int(n)
			return &i
		}
		if f, err := x.Float64(); err == nil {
			return intFromFloat(f)
		}
		s = x.String()
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}

	m := leadingInt.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// intFromFloat truncates f, rejecting values an int cannot hold.
func intFromFloat(f float64) *int {
	if math.IsNaN(f) || f < math.MinInt || f >= math.MaxInt {
		return nil
	}
	n := int(f)
	return &n
}

// Text trims a value and substitutes the not-specified sentinel for blanks.
// Socrata URL objects ({"url": "..."}) collapse to their url.
func Text(v any) string {
	s := rawText(v)
	if s == "" {
		return models.NotSpecified
	}
	return s
}

// rawText is Text without the sentinel.
func rawText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case map[string]any:
		if u, ok := x["url"].(string); ok {
			return strings.TrimSpace(u)
		}
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	case []any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
