package units

import (
	"math"
	"strings"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1024, "1024 Bytes"},
		{1025, "1 KiB"},
		{2047, "1 KiB"},
		{1024 * 1024, "1024 KiB"},
		{5 * 1024 * 1024, "5 MiB"},
		{3 * 1024 * 1024 * 1024, "3 GiB"},
		{-10, "0 Bytes"},
	}
	for _, tc := range tests {
		if got := FormatSize(tc.in); got != tc.want {
			t.Fatalf("FormatSize(%d) = %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSizeClampsAtGiB(t *testing.T) {
	for _, n := range []int64{1 << 40, 5 << 50, math.MaxInt64} {
		got := FormatSize(n)
		if !strings.HasSuffix(got, " GiB") {
			t.Fatalf("FormatSize(%d) = %q, want GiB unit", n, got)
		}
	}
	if got := FormatSize(2 << 40); got != "2048 GiB" {
		t.Fatalf("2 TiB rendered as %q", got)
	}
}

func TestFormatRate(t *testing.T) {
	if got := FormatRate(2048); got != "2 KiB/s" {
		t.Fatalf("FormatRate = %q", got)
	}
	if got := FormatRate(0); got != "0 Bytes/s" {
		t.Fatalf("FormatRate(0) = %q", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             int
	}{
		{0, 0, 0},
		{500, 0, 0},
		{0, 1000, 0},
		{500, 1000, 50},
		{1000, 1000, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1500, 1000, 100},
		{-5, 1000, 0},
	}
	for _, tc := range tests {
		if got := Percent(tc.completed, tc.total); got != tc.want {
			t.Fatalf("Percent(%d, %d) = %d want %d", tc.completed, tc.total, got, tc.want)
		}
	}
}

func TestPercentAlwaysInRange(t *testing.T) {
	for total := int64(0); total < 300; total += 7 {
		for completed := int64(0); completed <= total; completed += 3 {
			p := Percent(completed, total)
			if p < 0 || p > 100 {
				t.Fatalf("Percent(%d, %d) = %d out of range", completed, total, p)
			}
		}
	}
}
