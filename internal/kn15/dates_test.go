package kn15

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveDayHour(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		day      int
		hour     int
		expected time.Time
	}{
		{"same month", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), 14, 8, time.Date(2024, 4, 14, 8, 0, 0, 0, time.UTC)},
		{"later today is last month", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), 15, 8, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
		{"earlier today", time.Date(2024, 4, 15, 9, 30, 0, 0, time.UTC), 15, 8, time.Date(2024, 4, 15, 8, 0, 0, 0, time.UTC)},
		{"day missing in month", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), 31, 8, time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC)},
		{"rollback clamps to february", time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC), 31, 8, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
		{"january wraps to december", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 20, 8, time.Date(2023, 12, 20, 8, 0, 0, 0, time.UTC)},
		{"day missing in february takes last day of january", time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), 30, 20, time.Date(2023, 1, 31, 20, 0, 0, 0, time.UTC)},
		{"day missing in leap february", time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), 30, 8, time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)},
		{"day missing in june takes last day of may", time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC), 31, 8, time.Date(2023, 5, 31, 8, 0, 0, 0, time.UTC)},
		{"hour 24 is next midnight", time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC), 14, 24, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveDayHour(tt.now, tt.day, tt.hour))
		})
	}
}

func TestResolveDayHour_NeverInFuture(t *testing.T) {
	nows := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
	}

	for _, now := range nows {
		for day := 1; day <= 31; day++ {
			for hour := 0; hour <= 24; hour++ {
				got := resolveDayHour(now, day, hour)
				if got.After(now) {
					t.Fatalf("now=%s day=%d hour=%d resolved to future %s", now, day, hour, got)
				}
				assert.Zero(t, got.Minute())
				assert.Zero(t, got.Second())
			}
		}
	}
}

func TestResolveMonthDayHour(t *testing.T) {
	now := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC), resolveMonthDayHour(now, time.April, 10, 8))
	assert.Equal(t, time.Date(2023, 12, 20, 8, 0, 0, 0, time.UTC), resolveMonthDayHour(now, time.December, 20, 8))
	assert.Equal(t, time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC), resolveMonthDayHour(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), time.February, 29, 8))
}

func TestDecadeTimestamp(t *testing.T) {
	ref := time.Date(2024, 4, 21, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 4, 5, 12, 0, 0, 0, time.UTC), decadeTimestamp(ref, DecadeFirst))
	assert.Equal(t, time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC), decadeTimestamp(ref, DecadeSecond))
	assert.Equal(t, time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC), decadeTimestamp(ref, DecadeThird))
	assert.Equal(t, time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC), decadeTimestamp(ref, DecadeMonth))
}

func TestCheckDigit(t *testing.T) {
	assert.Equal(t, 3, checkDigit("012"))
	assert.Equal(t, 7, checkDigit("999"))
	assert.Equal(t, 0, checkDigit("000"))
}

func TestScientific(t *testing.T) {
	assert.Equal(t, 1.26, scientific("21126"))
	assert.Equal(t, 0.126, scientific("20126"))
	assert.Equal(t, 126.0, scientific("23126"))
	assert.Equal(t, 12600.0, scientific("25126"))
}
