package tddf

import (
	"math"
	"strconv"
)

// FormatDelay renders a processing delay in seconds as "45s", "1.8min" or "2.5hr".
// A nil delay renders as "N/A".
func FormatDelay(delaySeconds *int64) string {
	if delaySeconds == nil {
		return "N/A"
	}

	d := *delaySeconds
	abs := d
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs < 60:
		return strconv.FormatInt(d, 10) + "s"
	case abs < 3600:
		return formatTenths(float64(d)/60) + "min"
	default:
		return formatTenths(float64(d)/3600) + "hr"
	}
}

// formatTenths rounds half up to one decimal place and drops a trailing ".0"
func formatTenths(v float64) string {
	rounded := math.Floor(v*10+0.5) / 10
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
