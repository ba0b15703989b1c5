package timeutil

import (
	"testing"
	"time"
)

func TestNow_AlwaysUTC(t *testing.T) {
	now := Now()

	if now.Location() != time.UTC {
		t.Errorf("Now() returned non-UTC timezone: %v", now.Location())
	}
}

func TestWeekKey(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "single digit week is zero padded",
			input:    time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
			expected: "week_07",
		},
		{
			name:     "double digit week",
			input:    time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			expected: "week_36",
		},
		{
			name:     "january 1st can belong to the previous ISO year's last week",
			input:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: "week_53",
		},
		{
			name:     "rolls over on monday",
			input:    time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
			expected: "week_37",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekKey(tt.input); got != tt.expected {
				t.Errorf("WeekKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWeekKey_NonUTCInput(t *testing.T) {
	// Sunday 23:00 EST is already Monday in UTC; the bucket must follow UTC.
	est := time.FixedZone("EST", -5*3600)
	sundayNightEST := time.Date(2026, 9, 6, 23, 0, 0, 0, est)

	if got := WeekKey(sundayNightEST); got != "week_37" {
		t.Errorf("WeekKey() = %q, want %q", got, "week_37")
	}
}

func TestTwoDigitYear(t *testing.T) {
	if got := TwoDigitYear(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)); got != 26 {
		t.Errorf("TwoDigitYear() = %d, want 26", got)
	}
	if got := TwoDigitYear(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("TwoDigitYear() = %d, want 0", got)
	}
}

func TestToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	estTime := time.Date(2025, 11, 20, 12, 0, 0, 0, est)

	utcTime := ToUTC(estTime)

	if utcTime.Location() != time.UTC {
		t.Errorf("ToUTC() returned non-UTC: %v", utcTime.Location())
	}

	if utcTime.Hour() != 17 {
		t.Errorf("ToUTC() hour = %d, want 17", utcTime.Hour())
	}
}
