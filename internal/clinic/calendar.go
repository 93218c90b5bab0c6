// Package clinic holds the clinic's fixed daily schedule and its calendar
// arithmetic. Appointment dates are civil dates stored as midnight UTC, so a
// date compares and indexes the same way whatever the server's timezone is.
package clinic

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Calendar answers "what day is it at the clinic" questions.
type Calendar struct {
	loc    *time.Location
	closed time.Weekday
	now    func() time.Time
}

// NewCalendar builds a calendar for loc. A nil now uses time.Now.
func NewCalendar(loc *time.Location, closed time.Weekday, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{loc: loc, closed: closed, now: now}
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) ClosedWeekday() time.Weekday { return c.closed }

// Now is the current instant on the clinic clock.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// StartOfToday is the instant of local midnight today.
func (c *Calendar) StartOfToday() time.Time {
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
}

// Today is the current civil date.
func (c *Calendar) Today() time.Time {
	return Day(c.Now())
}

// IsPast reports whether day is strictly before today. Same-day is not past.
func (c *Calendar) IsPast(day time.Time) bool {
	return Day(day).Before(c.Today())
}

// IsClosed reports whether the clinic is shut on day.
func (c *Calendar) IsClosed(day time.Time) bool {
	return Day(day).Weekday() == c.closed
}

// ParseDate accepts "2006-01-02" or an RFC 3339 timestamp. Timestamps are
// read on the clinic clock before being truncated to a date.
func (c *Calendar) ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	if d, err := time.Parse(DateLayout, raw); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return Day(ts.In(c.loc)), nil
	}
	return time.Time{}, ErrInvalidDate
}

// Day truncates t to its civil date, expressed as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatLong renders a date the way the confirmation SMS shows it.
func FormatLong(day time.Time) string {
	return Day(day).Format("Monday, 2 January 2006")
}
