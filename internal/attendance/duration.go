// Package attendance turns video-conference attendance exports into per-participant totals,
// summary workbooks and plain-text course reports.
package attendance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HMSToMinutes converts an HH:MM:SS duration into fractional minutes. Malformed input
// yields zero.
func HMSToMinutes(value string) float64 {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0
	}

	var units [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		units[i] = n
	}

	return float64(units[0]*60+units[1]) + float64(units[2])/60
}

// MinutesToHMS formats fractional minutes as HH:MM:SS. Negative input clamps to zero and a
// rounded 60th second is shown as 59.
func MinutesToHMS(minutes float64) string {
	if minutes < 0 || math.IsNaN(minutes) {
		minutes = 0
	}

	whole := math.Floor(minutes)
	seconds := int(math.Round((minutes - whole) * 60))
	if seconds == 60 {
		seconds = 59
	}
	total := int(whole)

	return fmt.Sprintf("%02d:%02d:%02d", total/60, total%60, seconds)
}

func roundMinutes(minutes float64) float64 {
	return math.Round(minutes*1000) / 1000
}
