package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time.Time to UTC if it isn't already
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// WeekKey returns the weekly bucket key for t, e.g. "week_07".
// Buckets follow the ISO 8601 week number so the key rolls over on Mondays.
func WeekKey(t time.Time) string {
	_, week := t.UTC().ISOWeek()
	return fmt.Sprintf("week_%02d", week)
}

// TwoDigitYear returns the current year modulo 100, used for card
// expiry comparisons.
func TwoDigitYear(t time.Time) int {
	return t.UTC().Year() % 100
}
