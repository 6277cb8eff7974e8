// Package units renders byte counts and transfer progress for display.
package units

import (
	"math"
	"strconv"
)

var sizeUnits = [...]string{"Bytes", "KiB", "MiB", "GiB"}

// FormatSize converts a byte count into a whole number of the largest unit
// that keeps it above 1024, stopping at GiB. Each step truncates.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	i := 0
	for n > 1024 && i < len(sizeUnits)-1 {
		n /= 1024
		i++
	}
	return strconv.FormatInt(n, 10) + " " + sizeUnits[i]
}

// FormatRate is FormatSize with a per-second suffix.
func FormatRate(bytesPerSec int64) string {
	return FormatSize(bytesPerSec) + "/s"
}

// Percent returns completed/total as a rounded percentage in [0,100].
// A zero or negative total yields 0.
func Percent(completed, total int64) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}
