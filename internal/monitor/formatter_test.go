package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{"normal", 45.7, "45.7 units/s"},
		{"zero", 0.0, "0.0 units/s"},
		{"very_small", 0.0001, "0.0 units/s"},
		{"large", 1234.56, "1234.6 units/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRate(tt.rate))
		})
	}
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "0.0%", FormatPercentage(0))
	assert.Equal(t, "42.5%", FormatPercentage(0.425))
	assert.Equal(t, "100.0%", FormatPercentage(1))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"seconds", 42 * time.Second, "42s"},
		{"rounds", 1500 * time.Millisecond, "2s"},
		{"minutes", 3*time.Minute + 5*time.Second, "3m 5s"},
		{"hours", 2*time.Hour + 15*time.Minute + 30*time.Second, "2h 15m"},
		{"negative", -time.Second, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.d))
		})
	}
}
