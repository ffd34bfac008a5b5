package model

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format of a calendar day.
const DateLayout = "2006-01-02"

// Day truncates an instant to midnight UTC of its UTC calendar day.
// All snapshot dates, purchase dates, and "today" comparisons go through Day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the UTC calendar day of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// ParseDate parses a date string in "2006-01-02" or RFC3339 format and returns its UTC day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
		}
	}
	return Day(t), nil
}
