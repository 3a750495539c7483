package format

import (
	"math"
	"testing"
)

func TestCOP(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0 COP"},
		{999, "$999 COP"},
		{1000, "$1,000 COP"},
		{1234567, "$1,234,567 COP"},
		{1234567.6, "$1,234,568 COP"},
		{100000000, "$100,000,000 COP"},
		{-2500, "-$2,500 COP"},
		{math.NaN(), "$0 COP"},
		{math.Inf(1), "$0 COP"},
	}
	for _, tt := range tests {
		if got := COP(tt.in); got != tt.want {
			t.Fatalf("COP(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{950, "950"},
		{12_500, "12.5K"},
		{3_200_000, "3.2M"},
		{1_100_000_000, "1.1B"},
		{math.NaN(), "0"},
	}
	for _, tt := range tests {
		if got := Compact(tt.in); got != tt.want {
			t.Fatalf("Compact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
