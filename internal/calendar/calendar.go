package calendar

import (
	"fmt"
	"time"
)

// Day is a calendar date with no time-of-day component.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Before reports whether d is earlier than o.
func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// Calendar buckets instants into days in one fixed location. The same Calendar
// must be used on the write and read paths.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Calendar for loc. A nil loc means time.Local.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc, now: time.Now}
}

// Load resolves an IANA zone name; "" and "Local" select time.Local.
func Load(name string) (*Calendar, error) {
	if name == "" || name == "Local" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

// Location returns the configured location.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the configured location.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Of returns the day t falls on.
func (c *Calendar) Of(t time.Time) Day {
	y, m, d := t.In(c.loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// OfMillis returns the day for a Unix-millisecond timestamp.
func (c *Calendar) OfMillis(ms int64) Day {
	return c.Of(time.UnixMilli(ms))
}

// Today returns the current day.
func (c *Calendar) Today() Day { return c.Of(c.now()) }

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatTime renders the time-of-day of ms in the configured location.
func (c *Calendar) FormatTime(ms int64) string {
	return time.UnixMilli(ms).In(c.loc).Format("15:04:05")
}
