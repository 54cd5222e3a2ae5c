package domain

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no time or zone component. A summary or
// streak day is always a Date computed from an instant and the owner's zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a date in 2006-01-02 form.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Time returns the date as midnight UTC, the canonical DB representation.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Next returns the following calendar day.
func (d Date) Next() Date { return d.AddDays(1) }

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// BucketDate maps an instant to the activity day in the given IANA zone. The
// zone is resolved per call so the offset in effect at the instant itself is
// used, including across DST transitions. An unknown zone id fails hard;
// silently falling back to UTC would shift day boundaries and break streak
// continuity for the affected user.
func BucketDate(occurredAt time.Time, timezone string) (Date, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, timezone)
	}
	return DateOf(occurredAt.In(loc)), nil
}
