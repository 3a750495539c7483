// Package format renders values for people reading notifications.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// COP renders an amount of Colombian pesos with thousands separators and no
// decimals, e.g. "$1,234,567 COP". Non-finite values render as zero.
func COP(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0 COP"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + groupThousands(strconv.FormatFloat(math.Round(v), 'f', 0, 64)) + " COP"
}

// Compact abbreviates large counts and amounts: 950, 12.5K, 3.2M, 1.1B.
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "0"
	case abs < 1_000:
		return strconv.FormatInt(int64(v), 10)
	case abs < 1_000_000:
		return fmt.Sprintf("%.1fK", v/1_000)
	case abs < 1_000_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	default:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
