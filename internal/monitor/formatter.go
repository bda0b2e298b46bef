package monitor

import (
	"fmt"
	"time"
)

// FormatRate formats a throughput as "X.X units/s".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f units/s", rate)
}

// FormatPercentage formats a ratio (0-1) as a percentage.
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatDuration formats d as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(d time.Duration) string {
	seconds := int64(d.Round(time.Second) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
