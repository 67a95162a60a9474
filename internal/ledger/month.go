package ledger

import (
	"time"

	"github.com/susu3304/warikanbot/internal/apperrors"
)

const monthLayout = "2006-01"

// ParseYearMonth validates a "YYYY-MM" month.
func ParseYearMonth(s string) (string, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil || t.Format(monthLayout) != s {
		return "", apperrors.Validation("invalid month %q, expected YYYY-MM", s)
	}
	return s, nil
}

// YearMonthOf returns the calendar month of t in loc.
func YearMonthOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(monthLayout)
}

// CurrentMonth returns the month containing now.
func CurrentMonth(now time.Time, loc *time.Location) string {
	return YearMonthOf(now, loc)
}

// PreviousMonth returns the month before the one containing now.
func PreviousMonth(now time.Time, loc *time.Location) string {
	t := now.In(loc)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}
